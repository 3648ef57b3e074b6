package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// PostgresLedger persists custody state in PostgreSQL using double-entry postings.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the ledger tables when they do not exist yet.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// Bootstrap stores owner on first start and verifies it on every later one.
func (l *PostgresLedger) Bootstrap(ctx context.Context, owner string) (string, error) {
	if _, err := l.db.Exec(ctx, `INSERT INTO custody_settings (id, owner) VALUES (1, $1)
        ON CONFLICT (id) DO NOTHING`, owner); err != nil {
		return "", err
	}
	var stored string
	if err := l.db.QueryRow(ctx, `SELECT owner FROM custody_settings WHERE id = 1`).Scan(&stored); err != nil {
		return "", err
	}
	if err := ensureAccount(ctx, l.db, ExternalAccountCode); err != nil {
		return "", err
	}
	if stored != owner {
		return stored, ErrOwnerMismatch
	}
	return stored, nil
}

// Value returns the stored configuration value.
func (l *PostgresLedger) Value(ctx context.Context) (int64, error) {
	var value int64
	if err := l.db.QueryRow(ctx, `SELECT value FROM custody_settings WHERE id = 1`).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return value, nil
}

// SetValue overwrites the configuration value.
func (l *PostgresLedger) SetValue(ctx context.Context, value int64) error {
	cmd, err := l.db.Exec(ctx, `UPDATE custody_settings SET value = $1, updated_at = now() WHERE id = 1`, value)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("ledger settings not bootstrapped")
	}
	return nil
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, account string) (int64, error) {
	if IsReserved(account) {
		return 0, ErrReservedAccount
	}
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := l.db.QueryRow(ctx, query, account).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Total returns the sum of all custody balances, excluding the clearing account.
func (l *PostgresLedger) Total(ctx context.Context) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code <> $1`
	var total int64
	if err := l.db.QueryRow(ctx, query, ExternalAccountCode).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Credit records a deposit: the account gains amount, the clearing account loses it.
func (l *PostgresLedger) Credit(ctx context.Context, account string, amount int64) (PostingResult, error) {
	if IsReserved(account) {
		return PostingResult{}, ErrReservedAccount
	}
	if amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := ensureAccount(ctx, tx, account); err != nil {
		return PostingResult{}, err
	}
	accountID, err := accountIDForCode(ctx, tx, account)
	if err != nil {
		return PostingResult{}, err
	}
	externalID, err := accountIDForCode(ctx, tx, ExternalAccountCode)
	if err != nil {
		return PostingResult{}, err
	}

	balance, err := balanceForAccount(ctx, tx, accountID)
	if err != nil {
		return PostingResult{}, err
	}
	if balance > math.MaxInt64-amount {
		return PostingResult{}, ErrOverflow
	}

	txID, err := insertPosting(ctx, tx, KindDeposit, account, amount, accountID, externalID)
	if err != nil {
		return PostingResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{
		Posting: Posting{TransactionID: txID.String(), Kind: KindDeposit, Account: account, Amount: amount},
		Balance: balance + amount,
	}, nil
}

// Debit records a withdrawal and runs settle inside the same database
// transaction, so a settle failure rolls the debit back.
func (l *PostgresLedger) Debit(ctx context.Context, account string, amount int64, settle SettleFunc) (PostingResult, error) {
	if IsReserved(account) {
		return PostingResult{}, ErrReservedAccount
	}
	if amount < 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var balance int64
	accountID, err := accountIDForCode(ctx, tx, account)
	switch {
	case errors.Is(err, errAccountNotFound):
		accountID = uuid.Nil
	case err != nil:
		return PostingResult{}, err
	default:
		balance, err = balanceForAccount(ctx, tx, accountID)
		if err != nil {
			return PostingResult{}, err
		}
	}
	if balance < amount {
		return PostingResult{}, ErrInsufficientFunds
	}

	var txID uuid.UUID
	if accountID == uuid.Nil {
		// Zero withdrawal from an account that never received a deposit.
		txID = uuid.New()
		if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, kind, account, amount) VALUES ($1, $2, $3, $4)`,
			txID, KindWithdraw, account, amount); err != nil {
			return PostingResult{}, err
		}
	} else {
		externalID, err := accountIDForCode(ctx, tx, ExternalAccountCode)
		if err != nil {
			return PostingResult{}, err
		}
		txID, err = insertPosting(ctx, tx, KindWithdraw, account, amount, externalID, accountID)
		if err != nil {
			return PostingResult{}, err
		}
	}

	posting := Posting{TransactionID: txID.String(), Kind: KindWithdraw, Account: account, Amount: amount}
	if settle != nil {
		if err := settle(ctx, posting); err != nil {
			return PostingResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, fmt.Errorf("commit settled withdrawal %s: %w", posting.TransactionID, err)
	}

	return PostingResult{Posting: posting, Balance: balance - amount}, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func ensureAccount(ctx context.Context, db execer, code string) error {
	_, err := db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// insertPosting writes the transaction row and its two balancing entries:
// creditID gains amount, debitID loses it.
func insertPosting(ctx context.Context, tx pgx.Tx, kind, account string, amount int64, creditID, debitID uuid.UUID) (uuid.UUID, error) {
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, kind, account, amount) VALUES ($1, $2, $3, $4)`, txID, kind, account, amount); err != nil {
		return uuid.Nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, creditID, amount); err != nil {
		return uuid.Nil, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, debitID, -amount); err != nil {
		return uuid.Nil, err
	}
	return txID, nil
}

var errAccountNotFound = errors.New("account not found")

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s: %w", code, errAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
