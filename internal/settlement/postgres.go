package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTaskNotFound indicates the task id does not exist.
var ErrTaskNotFound = errors.New("settlement task not found")

// PostgresStore persists settlement tasks in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a Postgres-backed settlement task store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schedule inserts the task, relying on the uniqueness of the outgoing
// payment id to make duplicate scheduling a no-op.
func (s *PostgresStore) Schedule(ctx context.Context, task Task) error {
	id := task.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO settlement_tasks
        (id, outgoing_payment_id, wallet_address_id, due_at, attempts, status)
        VALUES ($1, $2, $3, $4, 0, $5)
        ON CONFLICT (outgoing_payment_id) DO NOTHING`,
		id, task.OutgoingPaymentID, task.WalletAddressID, task.DueAt.UTC(), StatusPending)
	if err != nil {
		return fmt.Errorf("scheduling settlement for outgoing payment %s: %w", task.OutgoingPaymentID, err)
	}
	return nil
}

// Claim picks due pending tasks with SKIP LOCKED so concurrent workers never
// grab the same task, and flips them to processing.
func (s *PostgresStore) Claim(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	rows, err := s.db.Query(ctx, `UPDATE settlement_tasks SET status = $1, attempts = attempts + 1
        WHERE id IN (
            SELECT id FROM settlement_tasks
            WHERE status = $2 AND due_at <= $3
            ORDER BY due_at
            LIMIT $4
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, outgoing_payment_id, wallet_address_id, due_at, attempts, status`,
		StatusProcessing, StatusPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("claiming settlement tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var task Task
		var dueAt time.Time
		if err := rows.Scan(&task.ID, &task.OutgoingPaymentID, &task.WalletAddressID, &dueAt, &task.Attempts, &task.Status); err != nil {
			return nil, err
		}
		task.DueAt = dueAt.UTC()
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (s *PostgresStore) MarkDone(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusDone)
}

func (s *PostgresStore) MarkRetry(ctx context.Context, id string, dueAt time.Time) error {
	cmd, err := s.db.Exec(ctx, `UPDATE settlement_tasks SET status = $1, due_at = $2 WHERE id = $3`,
		StatusPending, dueAt.UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *PostgresStore) MarkDead(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusDead)
}

func (s *PostgresStore) setStatus(ctx context.Context, id, status string) error {
	cmd, err := s.db.Exec(ctx, `UPDATE settlement_tasks SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
