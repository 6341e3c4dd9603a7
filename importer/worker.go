package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-sync/models"
)

const (
	queueKey  = "import:queue"
	jobPrefix = "import:job:"
	jobTTL    = 24 * time.Hour
)

// Job states.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

// ErrJobNotFound is returned when a job id is unknown or has expired.
var ErrJobNotFound = errors.New("import job not found")

// Job is the Redis-persisted state of one queued import.
type Job struct {
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	FilePath  string                `json:"file_path"`
	CreatedAt time.Time             `json:"created_at"`
	Error     string                `json:"error,omitempty"`
	Summary   *models.ImportSummary `json:"summary,omitempty"`
}

// Queue persists CSV files to disk and hands them to a background worker
// through a Redis list, so long imports outlive the submitting CLI.
type Queue struct {
	rdb        *redis.Client
	storageDir string
}

func NewQueue(rdb *redis.Client, storageDir string) *Queue {
	if storageDir == "" {
		storageDir = "./data/imports"
	}
	return &Queue{rdb: rdb, storageDir: storageDir}
}

// Enqueue copies the CSV into the storage directory and queues a job for it.
// Returns the job id.
func (q *Queue) Enqueue(ctx context.Context, csvPath string) (string, error) {
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	if err := os.MkdirAll(q.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}

	jobID := uuid.New().String()
	filePath := filepath.Join(q.storageDir, jobID+".csv")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("persist csv: %w", err)
	}

	job := &Job{
		ID:        jobID,
		Status:    JobPending,
		FilePath:  filePath,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.setJob(ctx, job); err != nil {
		os.Remove(filePath)
		return "", err
	}
	if err := q.rdb.RPush(ctx, queueKey, jobID).Err(); err != nil {
		os.Remove(filePath)
		q.rdb.Del(ctx, jobPrefix+jobID)
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	zap.L().Info("import job queued", zap.String("job_id", jobID))
	return jobID, nil
}

// Job returns the stored state for id, or ErrJobNotFound.
func (q *Queue) Job(ctx context.Context, id string) (*Job, error) {
	val, err := q.rdb.Get(ctx, jobPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (q *Queue) setJob(ctx context.Context, job *Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.Set(ctx, jobPrefix+job.ID, b, jobTTL).Err(); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

// StartWorker consumes queued jobs until ctx is cancelled. It runs in its own
// goroutine; jobs are processed strictly one at a time.
func (q *Queue) StartWorker(ctx context.Context, pipeline *Pipeline) {
	go func() {
		zap.L().Info("import worker started",
			zap.String("queue", queueKey),
			zap.String("dir", q.storageDir),
		)
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("import worker stopping")
				return
			default:
			}

			res, err := q.rdb.BLPop(ctx, 0, queueKey).Result()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				zap.L().Error("redis BLPop failed", zap.Error(err))
				time.Sleep(500 * time.Millisecond)
				continue
			}
			if len(res) < 2 {
				continue
			}
			q.process(ctx, pipeline, res[1])
		}
	}()
}

func (q *Queue) process(ctx context.Context, pipeline *Pipeline, jobID string) {
	job, err := q.Job(ctx, jobID)
	if err != nil {
		zap.L().Error("failed to read job metadata", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	job.Status = JobProcessing
	if err := q.setJob(ctx, job); err != nil {
		zap.L().Warn("failed to mark job processing", zap.String("job_id", jobID), zap.Error(err))
	}

	f, err := os.Open(filepath.Clean(job.FilePath))
	if err != nil {
		q.finish(ctx, job, nil, err)
		return
	}
	summary, err := pipeline.ImportCSV(ctx, f)
	f.Close()
	q.finish(ctx, job, summary, err)
	os.Remove(job.FilePath)
}

func (q *Queue) finish(ctx context.Context, job *Job, summary *models.ImportSummary, err error) {
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		zap.L().Error("import job failed", zap.String("job_id", job.ID), zap.Error(err))
	} else {
		job.Status = JobDone
		job.Summary = summary
		zap.L().Info("import job done",
			zap.String("job_id", job.ID),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
	}
	if serr := q.setJob(ctx, job); serr != nil {
		zap.L().Error("failed to store job result", zap.String("job_id", job.ID), zap.Error(serr))
	}
}
