package workerport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
)

const (
	workerKeyPrefix  = "dbs:worker:"
	workerIndexKey   = "dbs:workers"
	workerExpiration = 5 * time.Minute
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

// WorkerRepository implements the WorkerRepository interface with Redis
type WorkerRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository
func NewWorkerRepository(redisClient *redis.Client, logger primary.Logger) *WorkerRepository {
	return &WorkerRepository{
		redisClient: redisClient,
		logger:      logger,
	}
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	workerJSON, err := json.Marshal(worker)
	if err != nil {
		r.logger.Error("Failed to marshal worker info", "error", err)
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.Set(ctx, workerKeyPrefix+worker.ID, workerJSON, workerExpiration)
	pipe.SAdd(ctx, workerIndexKey, worker.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save worker info", "error", err)
		return fmt.Errorf("failed to save worker info: %w", err)
	}

	return nil
}

// GetWorker retrieves worker information from Redis by ID
func (r *WorkerRepository) GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error) {
	workerJSON, err := r.redisClient.Get(ctx, workerKeyPrefix+workerID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		r.logger.Error("Failed to get worker info", "error", err)
		return nil, fmt.Errorf("failed to get worker info: %w", err)
	}

	var worker domain.WorkerInfo
	if err := json.Unmarshal(workerJSON, &worker); err != nil {
		r.logger.Error("Failed to unmarshal worker info", "error", err)
		return nil, fmt.Errorf("failed to unmarshal worker info: %w", err)
	}

	return &worker, nil
}

// RemoveWorker deletes a worker and its index entry
func (r *WorkerRepository) RemoveWorker(ctx context.Context, workerID string) error {
	pipe := r.redisClient.TxPipeline()
	pipe.Del(ctx, workerKeyPrefix+workerID)
	pipe.SRem(ctx, workerIndexKey, workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to remove worker", "workerId", workerID, "error", err)
		return fmt.Errorf("failed to remove worker: %w", err)
	}
	return nil
}

// GetAllWorkers retrieves all worker information from Redis.
// Index entries whose value has expired are pruned.
func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	workerIDs, err := r.redisClient.SMembers(ctx, workerIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker IDs: %w", err)
	}

	workers := make([]*domain.WorkerInfo, 0, len(workerIDs))
	if len(workerIDs) == 0 {
		return workers, nil
	}

	keys := make([]string, len(workerIDs))
	for i, id := range workerIDs {
		keys[i] = workerKeyPrefix + id
	}

	// Use MGET to retrieve all worker data at once
	workerData, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}

	for i, data := range workerData {
		if data == nil {
			if err := r.redisClient.SRem(ctx, workerIndexKey, workerIDs[i]).Err(); err != nil {
				r.logger.Error("Failed to prune expired worker", "workerId", workerIDs[i], "error", err)
			}
			continue
		}
		raw, ok := data.(string)
		if !ok {
			continue
		}
		var worker domain.WorkerInfo
		if err := json.Unmarshal([]byte(raw), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}

	return workers, nil
}
