package sqlinline

const QListActiveWebhooks = `--sql 34b7d835-b409-4fe6-bc6f-ee6c416178c8
select id, url, event_types, coalesce(secret, ''), is_active
from webhook_subscriptions
where is_active = true;
`
