package sqlinline

// QClaimJobBatch atomically flips up to $1 queued jobs to processing and
// returns them in claim order. SKIP LOCKED keeps concurrent invocations from
// ever receiving overlapping jobs; the whole statement succeeds or claims
// nothing.
const QClaimJobBatch = `--sql f05ed548-a194-472d-87a1-7ec001908d8a
with next_jobs as (
    select id
    from ad_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit $1
),
claimed as (
    update ad_jobs
    set status = 'processing', updated_at = now()
    where id in (select id from next_jobs)
    returning id, user_id, media_url, media_kind, prompt_version, status,
        coalesce(media_hash, ''), digest, coalesce(brand, ''), created_at, updated_at
)
select * from claimed order by created_at asc;
`

// QReclaimStaleJobs returns zombie jobs to the queue. Repeated calls are
// idempotent: a job already back in queued no longer matches the predicate.
const QReclaimStaleJobs = `--sql 70ffd772-943b-45ab-9230-72b51b0335ba
update ad_jobs
set status = 'queued', updated_at = now()
where status = 'processing'
  and updated_at < now() - $1::interval;
`

const QRequeueJobs = `--sql be27fac5-8ac1-4ec8-9e00-53ac3cc157b1
update ad_jobs
set status = 'queued', updated_at = now()
where id = any($1::uuid[])
  and status = 'processing';
`

// QMarkJobProcessed finalizes a job. Brand rides along because the anomaly
// baseline query selects prior digests by it.
const QMarkJobProcessed = `--sql 7b2d7e5c-578b-49c9-8354-d812c77c1edb
update ad_jobs
set status = 'processed',
    media_hash = $2,
    digest = $3::jsonb,
    brand = nullif($4, ''),
    updated_at = now()
where id = $1;
`

const QMarkJobFailed = `--sql 957613c2-5a18-4801-8c3e-89f888a683cc
update ad_jobs
set status = $2,
    digest = $3::jsonb,
    updated_at = now()
where id = $1;
`

// QFindProcessedDuplicate locates a different, already processed job with the
// same media bytes under the same prompt version, for digest reuse.
const QFindProcessedDuplicate = `--sql 5c116598-539b-4eee-aff3-356a07b30600
select id, user_id, media_url, media_kind, prompt_version, status,
    coalesce(media_hash, ''), digest, coalesce(brand, ''), created_at, updated_at
from ad_jobs
where status = 'processed'
  and media_hash = $1
  and prompt_version = $2
  and id <> $3
order by updated_at desc
limit 1;
`

const QRecentBrandDigests = `--sql b6d64421-9feb-4b78-8c51-f522f00d9c40
select id, user_id, media_url, media_kind, prompt_version, status,
    coalesce(media_hash, ''), digest, coalesce(brand, ''), created_at, updated_at
from ad_jobs
where status = 'processed'
  and brand = $1
  and id <> $2
  and digest is not null
order by updated_at desc
limit $3;
`

const QInsertJob = `--sql 494352d4-720f-48da-9003-115aa04ebf14
insert into ad_jobs (id, user_id, media_url, media_kind, prompt_version, status, brand, created_at, updated_at)
values ($1, $2, $3, $4, $5, 'queued', $6, now(), now());
`

const QGetJobByID = `--sql 59a2c30e-ac30-42d7-b721-7a316aba670c
select id, user_id, media_url, media_kind, prompt_version, status,
    coalesce(media_hash, ''), digest, coalesce(brand, ''), created_at, updated_at
from ad_jobs
where id = $1;
`
