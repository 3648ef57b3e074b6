package ledger

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresLedger migrates a fresh schema in the database at DATABASE_URL
// and drops it when the test ends.
func newPostgresLedger(t *testing.T) (*PostgresLedger, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	schemaName := "custody_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ident := pgx.Identifier{schemaName}.Sanitize()

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+ident+" CASCADE")
		admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	l := NewPostgresLedger(pool)
	require.NoError(t, l.Migrate(ctx))
	_, err = l.Bootstrap(ctx, "acct:owner")
	require.NoError(t, err)
	return l, pool
}

func countTransactions(t *testing.T, pool *pgxpool.Pool, kind string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM transactions WHERE kind = $1`, kind).Scan(&n))
	return n
}

func TestPostgresLedger_BootstrapPersistsOwner(t *testing.T) {
	l, pool := newPostgresLedger(t)
	ctx := context.Background()

	owner, err := NewPostgresLedger(pool).Bootstrap(ctx, "acct:intruder")
	require.ErrorIs(t, err, ErrOwnerMismatch)
	assert.Equal(t, "acct:owner", owner)

	owner, err = l.Bootstrap(ctx, "acct:owner")
	require.NoError(t, err)
	assert.Equal(t, "acct:owner", owner)

	require.NoError(t, l.SetValue(ctx, 42))
	v, err := l.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestPostgresLedger_CreditAndTotal(t *testing.T) {
	l, _ := newPostgresLedger(t)
	ctx := context.Background()

	res, err := l.Credit(ctx, "acct:a", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Balance)
	_, err = l.Credit(ctx, "acct:b", 30)
	require.NoError(t, err)

	total, err := l.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(130), total)

	_, err = l.Credit(ctx, "acct:a", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPostgresLedger_ClearingAccountIsNotAddressable(t *testing.T) {
	l, _ := newPostgresLedger(t)
	ctx := context.Background()
	_, err := l.Credit(ctx, "acct:other", 100)
	require.NoError(t, err)

	_, err = l.Credit(ctx, ExternalAccountCode, 30)
	assert.ErrorIs(t, err, ErrReservedAccount)
	_, err = l.Debit(ctx, ExternalAccountCode, 0, nil)
	assert.ErrorIs(t, err, ErrReservedAccount)
	_, err = l.Balance(ctx, ExternalAccountCode)
	assert.ErrorIs(t, err, ErrReservedAccount)

	total, err := l.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestPostgresLedger_DebitRollsBackOnSettleFailure(t *testing.T) {
	l, pool := newPostgresLedger(t)
	ctx := context.Background()
	_, err := l.Credit(ctx, "acct:a", 500)
	require.NoError(t, err)
	refused := errors.New("recipient refused")

	_, err = l.Debit(ctx, "acct:a", 200, func(context.Context, Posting) error { return refused })
	require.ErrorIs(t, err, refused)

	balance, err := l.Balance(ctx, "acct:a")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	assert.Zero(t, countTransactions(t, pool, KindWithdraw))

	res, err := l.Debit(ctx, "acct:a", 200, func(context.Context, Posting) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Balance)
	assert.Equal(t, 1, countTransactions(t, pool, KindWithdraw))
}

func TestPostgresLedger_DebitInsufficientFunds(t *testing.T) {
	l, _ := newPostgresLedger(t)
	ctx := context.Background()
	_, err := l.Credit(ctx, "acct:a", 99)
	require.NoError(t, err)

	called := false
	_, err = l.Debit(ctx, "acct:a", 100, func(context.Context, Posting) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.False(t, called)

	_, err = l.Debit(ctx, "acct:ghost", 1, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPostgresLedger_ZeroDebitOnUnknownAccount(t *testing.T) {
	l, pool := newPostgresLedger(t)
	ctx := context.Background()

	res, err := l.Debit(ctx, "acct:ghost", 0, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Balance)
	assert.NotEmpty(t, res.TransactionID)

	var accounts int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM accounts WHERE code = $1`, "acct:ghost").Scan(&accounts))
	assert.Zero(t, accounts, "zero withdrawal must not create an account")
}

func TestPostgresLedger_ConcurrentDebitsSerialize(t *testing.T) {
	l, _ := newPostgresLedger(t)
	ctx := context.Background()
	_, err := l.Credit(ctx, "acct:a", 100)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = l.Debit(ctx, "acct:a", 100, func(context.Context, Posting) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := l.Debit(ctx, "acct:a", 100, nil)
		secondDone <- err
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second debit finished while the first held the account: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.ErrorIs(t, <-secondDone, ErrInsufficientFunds)

	balance, err := l.Balance(ctx, "acct:a")
	require.NoError(t, err)
	assert.Zero(t, balance)
}
