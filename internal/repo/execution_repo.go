package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Crypto-Goatz/jaxrun/internal/domain"
)

// ExecutionRepo — история выполнений.
//
// Отчёт сохраняется целиком после завершения run; повторное
// сохранение того же executionId перезаписывает запись.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `id, flow_id, status, output, error, logs, node_outputs,
	evaluation_order, pruned, started_at, finished_at`

// ExecutionFilter — параметры фильтрации выполнений.
type ExecutionFilter struct {
	FlowID string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// Save сохраняет отчёт о выполнении.
func (r *ExecutionRepo) Save(ctx context.Context, exec *domain.Execution) error {
	output, err := marshalNullable(exec.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	logs, err := json.Marshal(nonNil(exec.Logs))
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	outputs, err := marshalNullable(exec.NodeOutputs)
	if err != nil {
		return fmt.Errorf("marshal node outputs: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, output = EXCLUDED.output, error = EXCLUDED.error,
		    logs = EXCLUDED.logs, node_outputs = EXCLUDED.node_outputs,
		    evaluation_order = EXCLUDED.evaluation_order, pruned = EXCLUDED.pruned,
		    finished_at = EXCLUDED.finished_at
	`,
		exec.ID,
		exec.FlowID,
		string(exec.Status),
		output,
		nullString(exec.Error),
		logs,
		outputs,
		nonNil(exec.Order),
		nonNil(exec.Pruned),
		exec.StartedAt,
		nullTime(exec),
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// GetByID возвращает выполнение по executionId.
func (r *ExecutionRepo) GetByID(ctx context.Context, id string) (*domain.Execution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	return scanExecution(row)
}

// List возвращает выполнения, новые первыми.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE ($1::text IS NULL OR flow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`,
		nullString(filter.FlowID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var status string
	var errMsg *string
	var output, logs, outputs []byte
	var finishedAt *time.Time

	err := row.Scan(
		&exec.ID,
		&exec.FlowID,
		&status,
		&output,
		&errMsg,
		&logs,
		&outputs,
		&exec.Order,
		&exec.Pruned,
		&exec.StartedAt,
		&finishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.Status = domain.ParseRunStatus(status)
	if finishedAt != nil {
		exec.FinishedAt = *finishedAt
	}
	if errMsg != nil {
		exec.Error = *errMsg
	}
	if output != nil {
		if err := json.Unmarshal(output, &exec.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if err := json.Unmarshal(logs, &exec.Logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	if outputs != nil {
		if err := json.Unmarshal(outputs, &exec.NodeOutputs); err != nil {
			return nil, fmt.Errorf("unmarshal node outputs: %w", err)
		}
	}
	return &exec, nil
}

// marshalNullable кодирует значение в JSON; nil остаётся NULL.
func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullTime(exec *domain.Execution) any {
	if exec.FinishedAt.IsZero() {
		return nil
	}
	return exec.FinishedAt
}
