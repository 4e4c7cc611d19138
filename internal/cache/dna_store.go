package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"qp-spc/internal/models"
	"qp-spc/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var _ repository.DnaRecordStore = (*RedisDnaStore)(nil)

const maxUpdateRetries = 5

// RedisDnaStore DNA 记录的 Redis 实现
// 每条记录一个 JSON 值，键为 prefix + dna_id
// 创建用 SETNX，更新用 WATCH/MULTI 乐观事务
type RedisDnaStore struct {
	redisClient *redis.Client
	keyPrefix   string
	now         func() time.Time
	logger      *zap.Logger
}

// NewRedisDnaStore 创建 Redis DNA 存储
func NewRedisDnaStore(redisClient *redis.Client, keyPrefix string, logger *zap.Logger) *RedisDnaStore {
	return &RedisDnaStore{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *RedisDnaStore) key(id string) string {
	return s.keyPrefix + id
}

// GetOrCreate SETNX 保证只有第一次访问写入种子
func (s *RedisDnaStore) GetOrCreate(ctx context.Context, key models.CharacteristicKey, seed models.Characteristic) (*models.DnaRecord, error) {
	id, err := key.ID()
	if err != nil {
		return nil, err
	}

	rec := models.NewDnaRecord(id, key, seed, s.now())
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dna record: %w", err)
	}

	created, err := s.redisClient.SetNX(ctx, s.key(id), jsonData, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create dna record: %w", err)
	}
	if created {
		s.logger.Info("DNA record created",
			zap.String("dna_id", id),
			zap.String("char_type", string(rec.CharType)),
		)
		return &rec, nil
	}

	return s.Get(ctx, id)
}

// Get 读取记录
func (s *RedisDnaStore) Get(ctx context.Context, id string) (*models.DnaRecord, error) {
	val, err := s.redisClient.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, &models.NotFoundError{Kind: "dna record", ID: id}
		}
		return nil, fmt.Errorf("failed to get dna record: %w", err)
	}

	var rec models.DnaRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dna record: %w", err)
	}
	return &rec, nil
}

// Update 读-改-写在 WATCH 事务中完成，键被并发修改时重试
func (s *RedisDnaStore) Update(ctx context.Context, id string, patch models.DnaPatch) (*models.DnaRecord, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	k := s.key(id)
	var updated models.DnaRecord

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				return &models.NotFoundError{Kind: "dna record", ID: id}
			}
			return fmt.Errorf("failed to get dna record: %w", err)
		}

		var rec models.DnaRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal dna record: %w", err)
		}
		if err := patch.ApplyTo(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now()

		jsonData, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal dna record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, jsonData, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = rec
		return nil
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.redisClient.Watch(ctx, txf, k)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}

		s.logger.Debug("DNA record changed during update, retrying",
			zap.String("dna_id", id),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("failed to update dna record %s: too many concurrent updates", id)
}

// List 扫描前缀下全部记录（按 dna_id 排序）
func (s *RedisDnaStore) List(ctx context.Context) ([]models.DnaRecord, error) {
	var keys []string
	iter := s.redisClient.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan dna records: %w", err)
	}
	if len(keys) == 0 {
		return []models.DnaRecord{}, nil
	}

	vals, err := s.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get dna records: %w", err)
	}

	records := make([]models.DnaRecord, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec models.DnaRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			s.logger.Warn("Skipping malformed dna record",
				zap.String("key", keys[i]),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}
