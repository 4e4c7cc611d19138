package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"qp-spc/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testKey() models.CharacteristicKey {
	return models.CharacteristicKey{Workstation: "AP01", Order: "PO-4711", Process: "10", ItemNumber: "3"}
}

func testSeed(usl float64) models.Characteristic {
	return models.Characteristic{
		PlanNumber:    "CP-100",
		ProcessNumber: "10",
		ItemNumber:    "3",
		CharType:      models.CharTypeP,
		LSL:           floatPtr(9),
		USL:           floatPtr(usl),
		LCL:           floatPtr(9.5),
		UCL:           floatPtr(10.5),
		SampleSize:    intPtr(5),
		Frequency:     intPtr(60),
	}
}

func TestMemoryDnaStore_GetOrCreate_Idempotent(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)
	assert.Equal(t, "AP01_PO-4711_10_3", first.ID)
	assert.Equal(t, 10.0, *first.USL)
	assert.Equal(t, 5, *first.SampleSize)

	// 第二次调用的种子不同，应被忽略
	second, err := store.GetOrCreate(ctx, testKey(), testSeed(99))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 10.0, *second.USL)
	assert.Equal(t, *first.LCL, *second.LCL)
	assert.Equal(t, *first.UCL, *second.UCL)
}

func TestMemoryDnaStore_GetOrCreate_KeepsOperatorEdits(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)

	_, err = store.Update(ctx, rec.ID, models.DnaPatch{"UCL": 10.2})
	require.NoError(t, err)

	again, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)
	assert.Equal(t, 10.2, *again.UCL)
}

func TestMemoryDnaStore_GetOrCreate_ConcurrentFirstAccess(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*models.DnaRecord, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := store.GetOrCreate(ctx, testKey(), testSeed(float64(10+i)))
			if err == nil {
				results[i] = rec
			}
		}(i)
	}
	wg.Wait()

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	for _, rec := range results {
		require.NotNil(t, rec)
		assert.Equal(t, *all[0].USL, *rec.USL)
		assert.Equal(t, all[0].CreatedAt, rec.CreatedAt)
	}
}

func TestMemoryDnaStore_GetOrCreate_InvalidKey(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())

	_, err := store.GetOrCreate(context.Background(), models.CharacteristicKey{Workstation: "AP01"}, testSeed(10))
	assert.True(t, errors.Is(err, models.ErrInvalidKey))
}

func TestMemoryDnaStore_Update(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)

	updated, err := store.Update(ctx, rec.ID, models.DnaPatch{
		"checkStatus": "Out of Spec (High)",
		"Memo":        "gauge recalibrated",
	})
	require.NoError(t, err)
	assert.Equal(t, "Out of Spec (High)", *updated.CheckStatus)
	assert.Equal(t, "gauge recalibrated", *updated.Memo)
	// 未出现在补丁中的字段不变
	assert.Equal(t, 10.0, *updated.USL)
	assert.Equal(t, rec.ID, updated.ID)
}

func TestMemoryDnaStore_Update_RejectsIdentityField(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)

	_, err = store.Update(ctx, rec.ID, models.DnaPatch{"charType": "A"})
	assert.True(t, errors.Is(err, models.ErrInvalidField))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CharTypeP, got.CharType)
}

func TestMemoryDnaStore_NotFound(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = store.Update(ctx, "missing", models.DnaPatch{"Memo": "x"})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestMemoryDnaStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryDnaStore(zap.NewNop())
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey(), testSeed(10))
	require.NoError(t, err)
	*rec.USL = 50

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *got.USL)
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}

func stringPtr(s string) *string {
	return &s
}
