package sqlinline

const QInsertUser = `--sql 6f5a5787-d218-4c79-ba3c-6491f9dc67cd
insert into users(id, email, name, locale, role, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::timestamptz, $6::timestamptz);
`

const QGetUser = `--sql 9ade3451-2c51-4678-a31a-d801df0ff7d9
select id::text, email, name, locale, role, created_at, updated_at
from users
where id = $1::uuid;
`
