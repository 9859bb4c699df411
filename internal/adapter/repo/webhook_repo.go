package repo

import (
	"context"
	"fmt"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/sqlinline"
)

// WebhookRepoPG reads webhook subscriptions. The pipeline never writes them.
type WebhookRepoPG struct {
	db infra.SQLExecutor
}

func NewWebhookRepo(db infra.SQLExecutor) *WebhookRepoPG {
	return &WebhookRepoPG{db: db}
}

func (r *WebhookRepoPG) ListActive(ctx context.Context) ([]domain.WebhookSubscription, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListActiveWebhooks)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		var sub domain.WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.EventTypes, &sub.Secret, &sub.IsActive); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

var _ domain.WebhookRepository = (*WebhookRepoPG)(nil)
