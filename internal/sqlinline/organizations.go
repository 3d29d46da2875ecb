package sqlinline

const organizationColumns = `id::text, user_id::text, name, business_number, status, created_at, updated_at`

const QInsertOrganization = `--sql 7f2d0727-9afa-4cb2-a7e9-af55f8ff3487
insert into organizations(id, user_id, name, business_number, status, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::timestamptz, $6::timestamptz);
`

const QGetOrganization = `--sql 9cf403f7-2ea4-42a1-ae51-379399df80f1
select ` + organizationColumns + `
from organizations
where id = $1::uuid;
`

const QGetOrganizationByUser = `--sql 1a62367c-a815-4ac3-a984-e35e9236b89a
select ` + organizationColumns + `
from organizations
where user_id = $1::uuid;
`

const QLockOrganization = `--sql ebdd4ca8-9feb-4c1f-bb60-b514901949d3
select ` + organizationColumns + `
from organizations
where id = $1::uuid
for update;
`

const QUpdateOrganizationStatus = `--sql b51892b1-ce11-43d3-8e7e-503fcaca824f
update organizations
set status = $3::text, updated_at = now()
where id = $1::uuid and status = $2::text;
`

const QListOrganizationsByStatus = `--sql 31fcc8d4-e013-49d7-9a68-638536143958
select ` + organizationColumns + `
from organizations
where status = $1::text
order by created_at asc, id asc
limit $2::int;
`
