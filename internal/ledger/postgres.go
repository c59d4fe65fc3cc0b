package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore applies ledger outcomes in a single database transaction.
// Balance counters are adjusted with in-place increments so concurrent
// webhook deliveries touching the same wallet never lose an update.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Apply marks the event as applied and performs every adjustment in one
// transaction. A duplicate event id returns ErrEventAlreadyApplied with no
// side effects.
func (s *PostgresStore) Apply(ctx context.Context, input ApplyInput) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `INSERT INTO applied_events (event_id, payment_id, event_type, applied_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (event_id) DO NOTHING`,
		input.EventID, input.PaymentID, input.EventType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording applied event %s: %w", input.EventID, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrEventAlreadyApplied
	}

	for _, entry := range input.Entries {
		walletID, err := uuid.Parse(entry.WalletID)
		if err != nil {
			return fmt.Errorf("parsing wallet id %q: %w", entry.WalletID, err)
		}
		cmd, err := tx.Exec(ctx, `UPDATE wallets SET
            pending_credits = pending_credits + $1,
            pending_debits  = pending_debits + $2,
            posted_credits  = posted_credits + $3,
            posted_debits   = posted_debits + $4
            WHERE id = $5`,
			entry.Delta.PendingCredits, entry.Delta.PendingDebits,
			entry.Delta.PostedCredits, entry.Delta.PostedDebits, walletID)
		if err != nil {
			return fmt.Errorf("adjusting wallet %s: %w", entry.WalletID, err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("adjusting wallet %s: %w", entry.WalletID, ErrWalletNotFound)
		}
	}

	for _, txn := range input.Transactions {
		id := txn.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := txn.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `INSERT INTO transactions
            (id, type, incoming_payment_id, outgoing_payment_id, wallet_address_id, state,
             value, asset_code, asset_scale, sender_address, receiver_address, description, initiated_by, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			id, txn.Type, txn.IncomingPaymentID, txn.OutgoingPaymentID, txn.WalletAddressID, txn.State,
			txn.Value, txn.AssetCode, txn.AssetScale, txn.SenderAddress, txn.ReceiverAddress,
			txn.Description, txn.InitiatedBy, createdAt.UTC())
		if err != nil {
			return fmt.Errorf("recording transaction for payment %s: %w", input.PaymentID, err)
		}
	}

	if record := input.PaymentRecord; record != nil {
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx, `INSERT INTO payment_records (incoming_payment_id, wallet_id, active, created_at)
            VALUES ($1, $2, $3, $4) ON CONFLICT (incoming_payment_id) DO NOTHING`,
			record.IncomingPaymentID, record.WalletID, record.Active, createdAt.UTC())
		if err != nil {
			return fmt.Errorf("recording payment record %s: %w", record.IncomingPaymentID, err)
		}
	}

	if input.DeactivatePaymentID != "" {
		// Tolerant of records this backend never created.
		_, err := tx.Exec(ctx, `UPDATE payment_records SET active = false WHERE incoming_payment_id = $1`,
			input.DeactivatePaymentID)
		if err != nil {
			return fmt.Errorf("deactivating payment record %s: %w", input.DeactivatePaymentID, err)
		}
	}

	return tx.Commit(ctx)
}

// Transactions lists recorded transfer legs for a wallet address.
func (s *PostgresStore) Transactions(ctx context.Context, walletAddressID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, type, incoming_payment_id, outgoing_payment_id, wallet_address_id,
        state, value, asset_code, asset_scale, sender_address, receiver_address, description, initiated_by, created_at
        FROM transactions WHERE wallet_address_id = $1 ORDER BY created_at DESC`, walletAddressID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		var txn Transaction
		var createdAt time.Time
		if err := rows.Scan(&txn.ID, &txn.Type, &txn.IncomingPaymentID, &txn.OutgoingPaymentID,
			&txn.WalletAddressID, &txn.State, &txn.Value, &txn.AssetCode, &txn.AssetScale,
			&txn.SenderAddress, &txn.ReceiverAddress, &txn.Description, &txn.InitiatedBy, &createdAt); err != nil {
			return nil, err
		}
		txn.CreatedAt = createdAt.UTC()
		result = append(result, txn)
	}

	return result, rows.Err()
}
