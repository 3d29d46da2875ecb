package sqlinline

// QCountOrganizationsByStatus backs the moderation summary of cmd/orgreview.
const QCountOrganizationsByStatus = `--sql e6b3a3dd-f31f-4c6d-ac7b-d0de5d540d15
select status, count(*)
from organizations
group by status
order by status;
`
