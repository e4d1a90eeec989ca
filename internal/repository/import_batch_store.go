package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskflow/helpdesk/internal/domain"
)

var (
	ErrBatchNotFound         = errors.New("import batch not found")
	ErrBatchAlreadyConfirmed = errors.New("import batch already confirmed")
)

// ImportBatchStore keeps previewed batches until they are confirmed or expire.
type ImportBatchStore interface {
	Save(ctx context.Context, batch domain.ImportBatch, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.ImportBatch, error)
	// Claim reserves a batch for a single confirmation.
	Claim(ctx context.Context, id string, ttl time.Duration) error
	// Release drops a claim after a confirmation that did not commit.
	Release(ctx context.Context, id string) error
	MarkConfirmed(ctx context.Context, batch domain.ImportBatch) error
}

type redisBatchStore struct {
	client *redis.Client
}

// NewImportBatchStore builds a Redis backed batch store.
func NewImportBatchStore(client *redis.Client) ImportBatchStore {
	return &redisBatchStore{client: client}
}

func batchKey(id string) string { return "import:batch:" + id }

func claimKey(id string) string { return "import:batch:" + id + ":claim" }

func (s *redisBatchStore) Save(ctx context.Context, batch domain.ImportBatch, ttl time.Duration) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return s.client.Set(ctx, batchKey(batch.ID), data, ttl).Err()
}

func (s *redisBatchStore) Get(ctx context.Context, id string) (*domain.ImportBatch, error) {
	data, err := s.client.Get(ctx, batchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var batch domain.ImportBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &batch, nil
}

func (s *redisBatchStore) Claim(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, claimKey(id), "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrBatchAlreadyConfirmed
	}
	return nil
}

func (s *redisBatchStore) Release(ctx context.Context, id string) error {
	return s.client.Del(ctx, claimKey(id)).Err()
}

func (s *redisBatchStore) MarkConfirmed(ctx context.Context, batch domain.ImportBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return s.client.SetArgs(ctx, batchKey(batch.ID), data, redis.SetArgs{KeepTTL: true}).Err()
}
