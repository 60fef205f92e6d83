package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "transactions.json"))
	require.NoError(t, err)
	return store
}

func testTransaction(id string) *models.Transaction {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Transaction{
		ID:              id,
		RequesterID:     42,
		Amount:          decimal.RequireFromString("199.00"),
		Currency:        "RUB",
		Status:          models.StatusPending,
		ConfirmationURL: "https://pay.example/confirm",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestFileStore_SaveGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx := testTransaction("pay-1")
	require.NoError(t, store.Save(ctx, tx))

	got, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.RequesterID, got.RequesterID)
	assert.True(t, tx.Amount.Equal(got.Amount))
	assert.Equal(t, tx.Currency, got.Currency)
	assert.Equal(t, tx.Status, got.Status)
	assert.Equal(t, tx.ConfirmationURL, got.ConfirmationURL)
	assert.False(t, got.Provisioned)
}

func TestFileStore_GetUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestFileStore_UpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testTransaction("pay-1")))

	updated, err := store.UpdateStatus(ctx, "pay-1", models.StatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, updated.Status)

	got, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, got.Status)
}

func TestFileStore_UpdateStatusUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdateStatus(context.Background(), "missing", models.StatusSucceeded)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testTransaction("pay-1")))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(42), got.RequesterID)
}

func TestFileStore_ClaimProvisioningOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testTransaction("pay-1")))

	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimProvisioning(ctx, "pay-1")
			assert.NoError(t, err)
			claims <- claimed
		}()
	}
	wg.Wait()
	close(claims)

	won := 0
	for claimed := range claims {
		if claimed {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestFileStore_ReleaseProvisioningAllowsReclaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testTransaction("pay-1")))

	claimed, err := store.ClaimProvisioning(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.ReleaseProvisioning(ctx, "pay-1"))

	claimed, err = store.ClaimProvisioning(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestFileStore_ClaimProvisioningUnknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ClaimProvisioning(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}
