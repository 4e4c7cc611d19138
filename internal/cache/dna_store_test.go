package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"qp-spc/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisDnaStore) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = redisClient.Close() })

	store := NewRedisDnaStore(redisClient, "spc:dna:", zap.NewNop())
	return mr, redisClient, store
}

func testKey(item string) models.CharacteristicKey {
	return models.CharacteristicKey{Workstation: "AP01", Order: "PO-4711", Process: "10", ItemNumber: item}
}

func testSeed(usl float64) models.Characteristic {
	return models.Characteristic{
		PlanNumber:    "CP-100",
		ProcessNumber: "10",
		ItemNumber:    "3",
		CharType:      models.CharTypeP,
		LSL:           floatPtr(9),
		USL:           floatPtr(usl),
		UCL:           floatPtr(10.5),
		SampleSize:    intPtr(5),
		Frequency:     intPtr(60),
	}
}

func TestRedisDnaStore_GetOrCreate(t *testing.T) {
	mr, _, store := setupTestRedis(t)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey("3"), testSeed(10))
	require.NoError(t, err)
	assert.Equal(t, "AP01_PO-4711_10_3", rec.ID)
	assert.True(t, mr.Exists("spc:dna:AP01_PO-4711_10_3"))

	// 已存在时忽略新种子
	again, err := store.GetOrCreate(ctx, testKey("3"), testSeed(99))
	require.NoError(t, err)
	assert.Equal(t, 10.0, *again.USL)
	assert.Equal(t, 5, *again.SampleSize)
}

func TestRedisDnaStore_GetOrCreate_Concurrent(t *testing.T) {
	_, _, store := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	usls := make([]float64, 10)
	for i := range usls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := store.GetOrCreate(ctx, testKey("3"), testSeed(float64(10+i)))
			if err == nil {
				usls[i] = *rec.USL
			}
		}(i)
	}
	wg.Wait()

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	for _, usl := range usls {
		assert.Equal(t, *records[0].USL, usl)
	}
}

func TestRedisDnaStore_Get_NotFound(t *testing.T) {
	_, _, store := setupTestRedis(t)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRedisDnaStore_Update(t *testing.T) {
	_, _, store := setupTestRedis(t)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey("3"), testSeed(10))
	require.NoError(t, err)

	updated, err := store.Update(ctx, rec.ID, models.DnaPatch{
		"UCL":         10.2,
		"checkStatus": "OK",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.2, *updated.UCL)
	assert.Equal(t, "OK", *updated.CheckStatus)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.2, *got.UCL)
	assert.Equal(t, 10.0, *got.USL)
	assert.Equal(t, "OK", *got.CheckStatus)
}

func TestRedisDnaStore_Update_ConcurrentFieldsMerge(t *testing.T) {
	_, _, store := setupTestRedis(t)
	ctx := context.Background()

	rec, err := store.GetOrCreate(ctx, testKey("3"), testSeed(10))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = store.Update(ctx, rec.ID, models.DnaPatch{"Memo": "operator note"})
	}()
	go func() {
		defer wg.Done()
		_, _ = store.Update(ctx, rec.ID, models.DnaPatch{"LCL": 9.4})
	}()
	wg.Wait()

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Memo)
	assert.Equal(t, "operator note", *got.Memo)
	require.NotNil(t, got.LCL)
	assert.Equal(t, 9.4, *got.LCL)
}

func TestRedisDnaStore_Update_Errors(t *testing.T) {
	_, _, store := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "missing", models.DnaPatch{"Memo": "x"})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	rec, err := store.GetOrCreate(ctx, testKey("3"), testSeed(10))
	require.NoError(t, err)

	_, err = store.Update(ctx, rec.ID, models.DnaPatch{"id": "other"})
	assert.True(t, errors.Is(err, models.ErrInvalidField))

	_, err = store.Update(ctx, rec.ID, models.DnaPatch{"SampleSize": "five"})
	assert.True(t, errors.Is(err, models.ErrInvalidField))
}

func TestRedisDnaStore_List(t *testing.T) {
	mr, _, store := setupTestRedis(t)
	ctx := context.Background()

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.GetOrCreate(ctx, testKey("4"), testSeed(10))
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, testKey("3"), testSeed(10))
	require.NoError(t, err)
	// 前缀之外的键不应被列出
	require.NoError(t, mr.Set("other:key", "x"))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AP01_PO-4711_10_3", records[0].ID)
	assert.Equal(t, "AP01_PO-4711_10_4", records[1].ID)
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}
