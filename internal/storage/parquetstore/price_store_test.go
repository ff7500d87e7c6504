package parquetstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestPriceStore_InsertBulkAndGet(t *testing.T) {
	store := NewPriceStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-01-03"), Price: 470},
		{AssetCode: "SPY", Date: date("2023-12-29"), Price: 475},
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 98},
	}))

	// One file per code and year
	_, err := os.Stat(filepath.Join(store.DataDir, "daily", "SPY", "2023.parquet"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(store.DataDir, "daily", "SPY", "2024.parquet"))
	assert.NoError(t, err)

	result, err := store.GetByTimeRange(ctx, []string{"SPY", "AGG"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "AGG", result[0].AssetCode)
	assert.True(t, result[1].Date.Equal(date("2023-12-29")))
	assert.Equal(t, 470.0, result[2].Price)
}

func TestPriceStore_AppendAcrossBatches(t *testing.T) {
	store := NewPriceStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "GLD", Date: date("2024-01-03"), Price: 3},
	}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "GLD", Date: date("2024-01-02"), Price: 2},
		{AssetCode: "GLD", Date: date("2024-01-04"), Price: 4},
	}))

	result, err := store.GetByTimeRange(ctx, []string{"GLD"}, date("2024-01-02"), date("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 2.0, result[0].Price)
	assert.Equal(t, 3.0, result[1].Price)
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	store := NewPriceStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-01-02"), Price: 1},
	}))

	err := store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-01-05"), Price: 5},
		{AssetCode: "SPY", Date: date("2024-01-02"), Price: 1.1},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Failed batch leaves no partial writes
	result, err := store.GetByTimeRange(ctx, []string{"SPY"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, result, 1)

	err = store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 1},
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 2},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPriceStore_InvalidInput(t *testing.T) {
	store := NewPriceStore(t.TempDir())

	err := store.InsertBulk(context.Background(), []*domain.PricePoint{
		{AssetCode: "../etc", Date: date("2024-01-02"), Price: 1},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPriceStore_GetDateRange(t *testing.T) {
	store := NewPriceStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2022-06-01"), Price: 1},
		{AssetCode: "SPY", Date: date("2024-03-01"), Price: 2},
	}))

	first, last, err := store.GetDateRange(ctx, "SPY")
	require.NoError(t, err)
	assert.True(t, first.Equal(date("2022-06-01")))
	assert.True(t, last.Equal(date("2024-03-01")))

	_, _, err = store.GetDateRange(ctx, "AGG")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
