package sqlinline

const QInsertUsageEvent = `--sql f8da2021-b619-44f2-8ac5-8c2130bea297
insert into usage_events(id, user_id, job_id, event_type, success, billable, failure_kind, latency_ms, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::boolean, $5::boolean, $6::text, $7::int, now());
`
