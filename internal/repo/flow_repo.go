package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// FlowRepo — репозиторий сохранённых flows.
//
// Узлы, рёбра и переменные хранятся в jsonb как есть;
// порядок рёбер сохраняется.
type FlowRepo struct {
	pool *pgxpool.Pool
}

// NewFlowRepo создаёт новый FlowRepo.
func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

const flowColumns = `id, name, description, nodes, edges, variables, exchange_ids, is_active, created_at, updated_at`

// Create создаёт новый flow.
func (r *FlowRepo) Create(ctx context.Context, flow *domain.Flow) error {
	nodes, edges, vars, err := encodeGraph(flow)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO flows (`+flowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		flow.ID,
		flow.Name,
		nullString(flow.Description),
		nodes,
		edges,
		vars,
		nonNil(flow.ExchangeIDs),
		flow.IsActive,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("flow %q: %w", flow.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

// GetByID возвращает flow по ID.
func (r *FlowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)
	return scanFlow(row)
}

// GetByName возвращает flow по имени.
func (r *FlowRepo) GetByName(ctx context.Context, name string) (*domain.Flow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+flowColumns+` FROM flows WHERE name = $1`, name)
	return scanFlow(row)
}

// List возвращает список всех flows, новые первыми.
func (r *FlowRepo) List(ctx context.Context) ([]domain.Flow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flowColumns+` FROM flows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []domain.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

// Update заменяет определение flow.
func (r *FlowRepo) Update(ctx context.Context, flow *domain.Flow) error {
	nodes, edges, vars, err := encodeGraph(flow)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE flows
		SET name = $2, description = $3, nodes = $4, edges = $5, variables = $6,
		    exchange_ids = $7, is_active = $8, updated_at = $9
		WHERE id = $1
	`,
		flow.ID,
		flow.Name,
		nullString(flow.Description),
		nodes,
		edges,
		vars,
		nonNil(flow.ExchangeIDs),
		flow.IsActive,
		flow.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("flow %q: %w", flow.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет flow (каскадно удалит schedules).
// История выполнений сохраняется.
func (r *FlowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeGraph(flow *domain.Flow) (nodes, edges, vars []byte, err error) {
	if nodes, err = json.Marshal(nonNil(flow.Nodes)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	if edges, err = json.Marshal(nonNil(flow.Edges)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal edges: %w", err)
	}
	if flow.Variables != nil {
		if vars, err = json.Marshal(flow.Variables); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal variables: %w", err)
		}
	}
	return nodes, edges, vars, nil
}

func scanFlow(row pgx.Row) (*domain.Flow, error) {
	var flow domain.Flow
	var description *string
	var nodes, edges, vars []byte

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&description,
		&nodes,
		&edges,
		&vars,
		&flow.ExchangeIDs,
		&flow.IsActive,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow: %w", err)
	}

	if description != nil {
		flow.Description = *description
	}
	if err := json.Unmarshal(nodes, &flow.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &flow.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	if vars != nil {
		if err := json.Unmarshal(vars, &flow.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	return &flow, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonNil заменяет nil-срез пустым, чтобы в jsonb попал [] вместо null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
