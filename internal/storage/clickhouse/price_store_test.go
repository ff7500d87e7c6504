package clickhouse

import (
	"context"
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

func TestPriceStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceStore(conn)
	ctx := context.Background()

	// Test empty insert
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	points := []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-01-03"), Price: 470.5},
		{AssetCode: "SPY", Date: date("2024-01-02"), Price: 472.1},
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 98.2},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	result, err := store.GetByTimeRange(ctx, []string{"SPY", "AGG"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "AGG", result[0].AssetCode)
	assert.Equal(t, "SPY", result[1].AssetCode)
	assert.True(t, result[1].Date.Equal(date("2024-01-02")))
	assert.InDelta(t, 472.1, result[1].Price, 1e-9)
	assert.True(t, result[2].Date.Equal(date("2024-01-03")))
}

func TestPriceStore_DuplicateKey(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceStore(conn)
	ctx := context.Background()

	points := []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-01-02"), Price: 1.0},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	// Existing row
	err := store.InsertBulk(ctx, points)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate
	err = store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 1.0},
		{AssetCode: "AGG", Date: date("2024-01-02"), Price: 1.1},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	result, err := store.GetByTimeRange(ctx, []string{"AGG"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestPriceStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "GLD", Date: date("2024-01-01"), Price: 1},
		{AssetCode: "GLD", Date: date("2024-01-02"), Price: 2},
		{AssetCode: "GLD", Date: date("2024-01-03"), Price: 3},
		{AssetCode: "GLD", Date: date("2024-01-04"), Price: 4},
	}))

	result, err := store.GetByTimeRange(ctx, []string{"GLD"}, date("2024-01-02"), date("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 2.0, result[0].Price)
	assert.Equal(t, 3.0, result[1].Price)

	// Unknown code
	result, err = store.GetByTimeRange(ctx, []string{"XXX"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestPriceStore_GetDateRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.PricePoint{
		{AssetCode: "SPY", Date: date("2024-03-01"), Price: 1},
		{AssetCode: "SPY", Date: date("2024-01-01"), Price: 2},
	}))

	first, last, err := store.GetDateRange(ctx, "SPY")
	require.NoError(t, err)
	assert.True(t, first.Equal(date("2024-01-01")))
	assert.True(t, last.Equal(date("2024-03-01")))

	_, _, err = store.GetDateRange(ctx, "AGG")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
