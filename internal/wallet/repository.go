package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet matches the lookup.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet records.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByAddressID(ctx context.Context, addressID string) (Wallet, error)
	GetByUserID(ctx context.Context, userID string) (Wallet, error)
	Deactivate(ctx context.Context, id string) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, name, address, address_id, user_id, provider_id,
    pending_credits, pending_debits, posted_credits, posted_debits,
    key_id, public_key, private_key, active, created_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		walletID, wallet.Name, wallet.Address, wallet.AddressID, wallet.UserID, wallet.ProviderID,
		wallet.PendingCredits, wallet.PendingDebits, wallet.PostedCredits, wallet.PostedDebits,
		wallet.KeyID, wallet.PublicKey, wallet.PrivateKey, wallet.Active, wallet.CreatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, err
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID))
}

// GetByAddressID fetches the wallet the payment network refers to in webhook
// payloads.
func (r *PostgresRepository) GetByAddressID(ctx context.Context, addressID string) (Wallet, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE address_id = $1`, addressID))
}

// GetByUserID fetches the wallet linked to a user.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (Wallet, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
}

// Deactivate flips the active flag. Wallets are never physically deleted.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallets SET active = false WHERE id = $1`, walletID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		createdAt time.Time
	)
	err := row.Scan(&id, &w.Name, &w.Address, &w.AddressID, &w.UserID, &w.ProviderID,
		&w.PendingCredits, &w.PendingDebits, &w.PostedCredits, &w.PostedDebits,
		&w.KeyID, &w.PublicKey, &w.PrivateKey, &w.Active, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
