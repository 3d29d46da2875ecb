package sqlinline

const donationColumns = `id::text, donor_id::text, item_description, status, coalesce(match_type, ''),
       requested_organization_id::text, organization_id::text, created_at, updated_at`

const QInsertDonation = `--sql 9345e9e1-d094-4f41-b73b-d19a2c1e0dba
insert into donations(id, donor_id, item_description, status, match_type, requested_organization_id, organization_id, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, nullif($5::text, ''), $6::uuid, $7::uuid, $8::timestamptz, $8::timestamptz);
`

const QGetDonation = `--sql 62f3ad1d-8670-4c00-b7ab-8b65bf45c46d
select ` + donationColumns + `
from donations
where id = $1::uuid;
`

const QLockDonation = `--sql dc5356d5-d6ad-40b8-b8fc-63638bc62fde
select ` + donationColumns + `
from donations
where id = $1::uuid
for update;
`

const QUpdateDonationStatus = `--sql aeb15fd8-1069-4948-a378-35fb93319a51
update donations
set status = $3::text, updated_at = now()
where id = $1::uuid and status = $2::text;
`

const QAssignDonationOrganization = `--sql 3b384320-e7cf-424e-8423-7aaf163e1980
update donations
set organization_id = $2::uuid, match_type = $3::text, status = 'IN_PROGRESS', updated_at = now()
where id = $1::uuid and status = 'PENDING' and organization_id is null;
`

const QSetRequestedOrganization = `--sql a508334c-419c-4dca-b343-e47928b24ca3
update donations
set requested_organization_id = $2::uuid, match_type = nullif($3::text, ''), updated_at = now()
where id = $1::uuid and status = 'PENDING';
`

const QListDonationsByDonor = `--sql 77b97da9-1a90-4de0-b762-4a69729336d6
select ` + donationColumns + `
from donations
where donor_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`

const QListDonationsByOrganization = `--sql 1cfb9542-f9c8-4e55-bca5-f8f518d94d85
select ` + donationColumns + `
from donations
where organization_id = $1::uuid or requested_organization_id = $1::uuid
order by created_at desc, id desc
limit $2::int;
`
