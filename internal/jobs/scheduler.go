package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"mnemo/internal/services"
)

// Job is one recurring maintenance task
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler runs maintenance jobs on fixed intervals in UTC. When Redis is
// configured each run is guarded by a distributed lock, so several instances
// against the same database execute each job once per tick.
type Scheduler struct {
	scheduler  gocron.Scheduler
	redis      *services.RedisService
	instanceID string
	jobs       []Job
}

// NewScheduler creates a scheduler. redis may be nil for single-instance runs.
func NewScheduler(redis *services.RedisService) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler:  s,
		redis:      redis,
		instanceID: uuid.New().String(),
	}, nil
}

// Register adds a job to the scheduler
func (s *Scheduler) Register(job Job) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(job.Interval()),
		gocron.NewTask(func() {
			s.runGuarded(job)
		}),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}

	s.jobs = append(s.jobs, job)
	log.Printf("✅ [SCHEDULER] Registered job: %s (every %v)", job.Name(), job.Interval())
	return nil
}

// runGuarded executes one job tick under the distributed lock
func (s *Scheduler) runGuarded(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), job.Interval())
	defer cancel()

	lockTTL := job.Interval()
	if lockTTL > 10*time.Minute {
		lockTTL = 10 * time.Minute
	}

	acquired, err := s.redis.WithLock(ctx, job.Name(), s.instanceID, lockTTL, job.Run)
	if err != nil {
		log.Printf("❌ [SCHEDULER] Job '%s' failed: %v", job.Name(), err)
		return
	}
	if !acquired {
		log.Printf("⏭️  [SCHEDULER] Job '%s' skipped, another instance holds the lock", job.Name())
	}
}

// Start begins running all registered jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started with %d jobs (instance %s)", len(s.jobs), s.instanceID)
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		log.Printf("⚠️ [SCHEDULER] Shutdown error: %v", err)
	}
	log.Println("✅ [SCHEDULER] Stopped")
}

// RunNow immediately runs a specific registered job (useful for testing)
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}
