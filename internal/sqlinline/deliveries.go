package sqlinline

const deliveryColumns = `id::text, donation_id::text, status, sender_name, sender_email, receiver_name, receiver_email,
       tracking_number, carrier, created_at, updated_at`

const QInsertDelivery = `--sql 687da85a-290e-4043-bce5-6fa3a5f6bbf9
insert into deliveries(id, donation_id, status, sender_name, sender_email, receiver_name, receiver_email, tracking_number, carrier, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::text, $10::timestamptz, $10::timestamptz);
`

const QGetDelivery = `--sql ab749651-bb02-40db-b4c4-2d0aa9c130ed
select ` + deliveryColumns + `
from deliveries
where id = $1::uuid;
`

const QGetDeliveryByDonation = `--sql 37c5edfa-bb2f-4689-af65-cab9c7d5c70a
select ` + deliveryColumns + `
from deliveries
where donation_id = $1::uuid;
`

const QLockDelivery = `--sql 8beaca07-faf1-4622-a79a-254f4142827f
select ` + deliveryColumns + `
from deliveries
where id = $1::uuid
for update;
`

const QUpdateDeliveryStatus = `--sql e3d5966c-a637-411b-ae20-9f76554d0961
update deliveries
set status = $3::text, updated_at = now()
where id = $1::uuid and status = $2::text;
`

const QSetDeliveryTracking = `--sql ab136474-6708-4e8e-81bb-d55d9588e4c6
update deliveries
set tracking_number = $2::text, carrier = $3::text, updated_at = now()
where id = $1::uuid;
`
