package sqlinline

const notificationColumns = `id::text, user_id::text, type, title, message, is_read,
       coalesce(related_kind, ''), coalesce(related_id::text, ''), dedupe_key, created_at, read_at`

// QInsertNotification returns no row when (user_id, dedupe_key) already exists.
const QInsertNotification = `--sql 7f46c13b-da90-4ef2-a482-120756745838
insert into notifications(id, user_id, type, title, message, related_kind, related_id, dedupe_key, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, nullif($6::text, ''), nullif($7::text, '')::uuid, $8::text, $9::timestamptz)
on conflict (user_id, dedupe_key) do nothing
returning ` + notificationColumns + `;
`

const QGetNotificationByDedupeKey = `--sql 15744f1c-5c13-4012-aa89-793d7c6f3635
select ` + notificationColumns + `
from notifications
where user_id = $1::uuid and dedupe_key = $2::text;
`

const QGetNotification = `--sql 3f54b8e7-b72d-49ec-901c-eb2fbf789a57
select ` + notificationColumns + `
from notifications
where id = $1::uuid;
`

const QListNotificationsByUser = `--sql 1b46863c-949b-4bc7-ab3f-cacc3b6e89db
select ` + notificationColumns + `
from notifications
where user_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`

const QCountUnreadNotifications = `--sql fde104a8-d3dc-4cd2-9b9b-4199ec68ff4c
select count(*)
from notifications
where user_id = $1::uuid and not is_read;
`

const QMarkNotificationRead = `--sql 47932b8c-d3b7-4b80-8bc1-ed4e4d547f75
update notifications
set is_read = true, read_at = $2::timestamptz
where id = $1::uuid and not is_read;
`

const QMarkAllNotificationsRead = `--sql 222a6fe6-85ef-4f26-af5b-2a70887b0f42
update notifications
set is_read = true, read_at = $2::timestamptz
where user_id = $1::uuid and not is_read;
`
