package sqlinline

const QSelectCreditBalance = `--sql 15040cbe-19de-442f-875a-bab27c1f7324
select granted, used
from credit_balances
where user_id = $1::uuid;
`

const QConsumeCredit = `--sql ede24769-9a09-4a83-8570-307f1559cbeb
update credit_balances
set used = used + 1, updated_at = now()
where user_id = $1::uuid
  and granted > used;
`
