package sqlinline

const QInsertUsageEvent = `--sql 440d07c2-d8f8-4c46-8c1d-0862ce6a6296
insert into usage_events (id, user_id, job_id, event_type, success, latency_ms, created_at)
values (gen_random_uuid(), $1::text, $2::uuid, $3::text, $4::boolean, $5::bigint, now());
`
