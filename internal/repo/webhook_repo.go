package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// WebhookRepo — подписки на исходящие webhooks.
type WebhookRepo struct {
	pool *pgxpool.Pool
}

// NewWebhookRepo создаёт новый WebhookRepo.
func NewWebhookRepo(pool *pgxpool.Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

const subscriptionColumns = `id, name, url, events, secret, is_active, created_at`

// Create создаёт подписку.
func (r *WebhookRepo) Create(ctx context.Context, s *domain.WebhookSubscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		s.ID,
		s.Name,
		s.URL,
		nonNil(s.Events),
		nullString(s.Secret),
		s.IsActive,
		s.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID возвращает подписку по ID.
func (r *WebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookSubscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM webhook_subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// List возвращает подписки. activeOnly отбрасывает выключенные.
func (r *WebhookRepo) List(ctx context.Context, activeOnly bool) ([]domain.WebhookSubscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions
		WHERE NOT $1 OR is_active
		ORDER BY created_at ASC
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

// Delete удаляет подписку.
func (r *WebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var s domain.WebhookSubscription
	var secret *string

	err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Events, &secret, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if secret != nil {
		s.Secret = *secret
	}
	return &s, nil
}
