package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/unqnft/marketplace-proxy/internal/database"
	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
)

const (
	logQueueKey       = "logs:queue"
	logLockTTL        = 15 * time.Second
	logLockRetryDelay = 1 * time.Second
	logLockRetries    = 3
	logBatchSize      = 1000
	logWorkerCount    = 4
)

// RequestLogRepository buffers request logs in redis and flushes them to
// postgres in batches. Writes never block the request path; a full task
// queue drops the log entry.
type RequestLogRepository interface {
	InsertLog(ctx context.Context, log schema.RequestLog) error
	ProcessQueue() error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type requestLogRepository struct {
	db          *database.Database
	redisClient *shared.RedisClient
	logger      zerolog.Logger
	taskQueue   chan func() error
	quit        chan bool
}

func NewRequestLogRepository(lc fx.Lifecycle, db *database.Database, redisClient *shared.RedisClient, logger zerolog.Logger) RequestLogRepository {
	repo := &requestLogRepository{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		taskQueue:   make(chan func() error, 1000),
		quit:        make(chan bool),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for i := 0; i < logWorkerCount; i++ {
				go repo.worker()
			}
			return nil
		},
		OnStop: func(context.Context) error {
			close(repo.quit)
			return nil
		},
	})

	return repo
}

func (r *requestLogRepository) worker() {
	for {
		select {
		case task := <-r.taskQueue:
			if err := task(); err != nil {
				r.logger.Error().Err(err).Msg("request log task failed")
			}
		case <-r.quit:
			return
		}
	}
}

func (r *requestLogRepository) InsertLog(ctx context.Context, log schema.RequestLog) error {
	if log.RequestID == "" {
		log.RequestID = uuid.NewString()
	}

	task := func() error {
		data, err := json.Marshal(log)
		if err != nil {
			return err
		}
		return r.redisClient.Client.RPush(ctx, logQueueKey, data).Err()
	}

	select {
	case r.taskQueue <- task:
	default:
		r.logger.Debug().Msg("request log queue is full, dropping entry")
	}

	return nil
}

// ProcessQueue drains the redis buffer into postgres under a lock so only
// one instance flushes at a time.
func (r *requestLogRepository) ProcessQueue() error {
	lockKey := "lock:logs_queue"

	for attempt := 1; attempt <= logLockRetries; attempt++ {
		if r.redisClient.AcquireLock(lockKey, logLockTTL) {
			defer r.redisClient.ReleaseLock(lockKey)
			return r.flush()
		}
		time.Sleep(logLockRetryDelay)
	}

	return fmt.Errorf("failed to acquire log queue lock after %d attempts", logLockRetries)
}

func (r *requestLogRepository) flush() error {
	ctx := context.Background()

	entries, err := r.redisClient.Client.LRange(ctx, logQueueKey, 0, -1).Result()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	defer r.redisClient.Client.Del(ctx, logQueueKey)

	logs := make([]schema.RequestLog, 0, len(entries))
	for _, entry := range entries {
		var log schema.RequestLog
		if err := json.Unmarshal([]byte(entry), &log); err != nil {
			r.logger.Warn().Err(err).Msg("skipping corrupt request log entry")
			continue
		}
		logs = append(logs, log)
	}

	for i := 0; i < len(logs); i += logBatchSize {
		end := i + logBatchSize
		if end > len(logs) {
			end = len(logs)
		}
		batch := logs[i:end]
		if err := r.db.DB.Create(&batch).Error; err != nil {
			r.logger.Error().Err(err).Msg("failed to insert request logs")
			return err
		}
	}

	return nil
}

func (r *requestLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&schema.RequestLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
