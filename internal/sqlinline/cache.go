package sqlinline

// QCacheLookup returns the stored result and bumps the hit counter in the
// same statement. Entries older than the interval are filtered at read time
// rather than deleted.
const QCacheLookup = `--sql 56a4c106-bf01-4712-8ce9-ac26b91cecf1
update analysis_cache
set hit_count = hit_count + 1
where image_hash = $1
  and model_used = $2
  and prompt_version = $3
  and created_at > now() - $4::interval
returning analysis_result;
`

// QCacheStore is last-write-wins on conflict; concurrent writers for the same
// key produce identical results so either row is valid.
const QCacheStore = `--sql 934a7065-a5d8-436c-bd1b-bc102a1d0881
insert into analysis_cache (image_hash, model_used, prompt_version, analysis_result, hit_count, created_at)
values ($1, $2, $3, $4::jsonb, 0, now())
on conflict (image_hash, model_used, prompt_version)
do update set analysis_result = excluded.analysis_result, created_at = excluded.created_at;
`
