package sqlinline

// QAcquireLease is a compare-and-swap on the lease row. It succeeds only when
// the previous holder's window has elapsed, so overlapping invocations across
// instances contend on the database rather than on process memory.
const QAcquireLease = `--sql 2dbe94f2-700e-45d5-a467-8f790d36f27f
insert into worker_leases (name, locked_at)
values ($1, now())
on conflict (name)
do update set locked_at = now()
where worker_leases.locked_at < now() - $2::interval
returning name;
`
