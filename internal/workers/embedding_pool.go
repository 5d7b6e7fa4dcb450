package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mnemo/internal/embedding"
	"mnemo/internal/models"
	"mnemo/internal/services"
	"mnemo/internal/store"
)

// PoolConfig holds the worker pool configuration
type PoolConfig struct {
	Workers      int           // Default: 4
	PollInterval time.Duration // Sleep when the queue is empty. Default: 2s
	EmbedTimeout time.Duration // Per provider call. Default: 30s
	ModelHint    string        // Passed to the provider; empty uses its default
}

// DefaultPoolConfig returns the default pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      4,
		PollInterval: 2 * time.Second,
		EmbedTimeout: 30 * time.Second,
	}
}

// Pool runs N workers that claim embedding jobs, call the provider and write
// results back. Workers block only while waiting for a free job or inside the
// provider call; everything else is a short store transaction.
type Pool struct {
	store    *store.Store
	provider embedding.Provider
	metrics  *services.Metrics
	config   PoolConfig

	instanceID string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPool creates a worker pool. Workers don't start until Start is called.
func NewPool(st *store.Store, provider embedding.Provider, metrics *services.Metrics, config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = 30 * time.Second
	}
	return &Pool{
		store:      st,
		provider:   provider,
		metrics:    metrics,
		config:     config,
		instanceID: uuid.New().String()[:8],
	}
}

// Start launches the workers. They run until Stop or ctx cancellation.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.Workers; i++ {
		workerID := fmt.Sprintf("%s-w%d", p.instanceID, i)
		p.wg.Add(1)
		go p.run(ctx, workerID)
	}

	log.Printf("🚀 [WORKERS] Started %d embedding workers (instance %s)", p.config.Workers, p.instanceID)
}

// Stop signals all workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Printf("🛑 [WORKERS] Embedding workers stopped (instance %s)", p.instanceID)
}

// run is one worker's claim loop. Store errors back off with doubling sleeps
// so a database outage doesn't turn into a busy loop.
func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()

	idleSleep := p.config.PollInterval
	errorSleep := p.config.PollInterval

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.store.ClaimNextJob(ctx, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ [WORKERS] %s failed to claim job: %v", workerID, err)
			if !sleepCtx(ctx, errorSleep) {
				return
			}
			errorSleep *= 2
			if errorSleep > time.Minute {
				errorSleep = time.Minute
			}
			continue
		}
		errorSleep = p.config.PollInterval

		if job == nil {
			// Queue empty
			if !sleepCtx(ctx, idleSleep) {
				return
			}
			continue
		}

		p.process(ctx, workerID, job)
	}
}

// process handles one claimed job end to end
func (p *Pool) process(ctx context.Context, workerID string, job *models.EmbeddingJob) {
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerFinished()
	started := time.Now()

	text, err := p.targetText(ctx, job)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Target row is gone; nothing to embed, ever
			p.fail(ctx, workerID, job, "target row no longer exists", true)
			return
		}
		p.fail(ctx, workerID, job, err.Error(), false)
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.config.EmbedTimeout)
	result, err := p.provider.Embed(embedCtx, text, p.config.ModelHint)
	cancel()
	if err != nil {
		p.fail(ctx, workerID, job, err.Error(), embedding.IsPermanent(err))
		return
	}

	err = p.store.CompleteJob(ctx, job.ID, workerID, result.Vector, result.ModelID, result.Dimension)
	if err != nil {
		if errors.Is(err, store.ErrStaleClaim) {
			// The sweep reclaimed this job; whoever claims it next redoes the
			// work, and the write-back is idempotent.
			log.Printf("⚠️ [WORKERS] %s lost claim on job %d before completion", workerID, job.ID)
			return
		}
		log.Printf("⚠️ [WORKERS] %s failed to complete job %d: %v", workerID, job.ID, err)
		return
	}

	p.metrics.RecordJobOutcome("completed")
	p.metrics.RecordJobDuration(time.Since(started).Seconds())
}

// fail records a failed attempt, routing to retry or dead-letter
func (p *Pool) fail(ctx context.Context, workerID string, job *models.EmbeddingJob, errMsg string, permanent bool) {
	err := p.store.FailJob(ctx, job.ID, workerID, errMsg, permanent)
	if err != nil {
		if errors.Is(err, store.ErrStaleClaim) {
			log.Printf("⚠️ [WORKERS] %s lost claim on job %d before failing it", workerID, job.ID)
			return
		}
		log.Printf("⚠️ [WORKERS] %s failed to record failure for job %d: %v", workerID, job.ID, err)
		return
	}

	if permanent || job.Retries+1 >= job.MaxRetries {
		p.metrics.RecordJobOutcome("dead")
		log.Printf("💀 [WORKERS] Job %d dead-lettered: %s", job.ID, errMsg)
	} else {
		p.metrics.RecordJobOutcome("retried")
	}
}

// targetText loads the text to embed for a job's target row
func (p *Pool) targetText(ctx context.Context, job *models.EmbeddingJob) (string, error) {
	switch job.TargetTable {
	case models.TargetMessages:
		msg, err := p.store.GetMessage(ctx, job.TenantID, job.TargetID)
		if err != nil {
			return "", err
		}
		return msg.Content, nil
	case models.TargetMemories:
		mem, err := p.store.GetMemory(ctx, job.TenantID, job.TargetID)
		if err != nil {
			return "", err
		}
		return mem.Content, nil
	default:
		return "", fmt.Errorf("unknown job target table %q", job.TargetTable)
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first; returns false on cancel
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
