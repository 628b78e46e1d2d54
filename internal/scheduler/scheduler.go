// Package scheduler runs the periodic maintenance jobs of the marketplace
// on robfig/cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron"
)

// Job names / Noms des tâches
const (
	JobTokenPurge     = "token_purge"
	JobDocumentExpiry = "document_expiry"
	JobBackup         = "backup"
)

// ErrUnknownJob is returned by RunNow for an unregistered name / Tâche inconnue
var ErrUnknownJob = errors.New("unknown job")

// ErrJobRunning is returned when a run overlaps the previous one / Exécution déjà en cours
var ErrJobRunning = errors.New("job already running")

// ErrStopped is returned by RunNow once Stop was called / Planificateur arrêté
var ErrStopped = errors.New("scheduler stopped")

// Metrics records job outcomes / Enregistre le résultat des tâches
type Metrics interface {
	RecordJobRun(job string, ok bool)
	SetBackgroundTaskStatus(taskName string, running bool)
}

// Func is the body of a job / Corps d'une tâche
type Func func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	fn      Func
	mu      sync.Mutex // Held while running / Tenu pendant l'exécution
	lastRun time.Time
	lastErr error
}

// Status describes one registered job / Décrit une tâche enregistrée
type Status struct {
	Name    string
	Spec    string
	Next    time.Time
	LastRun time.Time
	LastErr error
}

// Scheduler owns the cron runner / Possède le planificateur cron
type Scheduler struct {
	cron    *cron.Cron
	metrics Metrics
	timeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]*job
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped scheduler / Crée un planificateur arrêté
// timeout bounds every run, zero means one hour.
func New(metrics Metrics, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		metrics: metrics,
		timeout: timeout,
		jobs:    make(map[string]*job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name with a standard cron spec / Enregistre une tâche
// Descriptors such as "@daily" or "@every 6h" are accepted.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, spec: spec, fn: fn}
	s.jobs[name] = j
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		if !s.enter(true) {
			return
		}
		defer s.wg.Done()
		if err := s.run(s.ctx, j); err != nil && !errors.Is(err, ErrJobRunning) {
			slog.Error("scheduled job failed", "job", j.name, "err", err)
		}
	}))
	slog.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Start begins firing jobs / Démarre le déclenchement des tâches
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
	for name := range s.jobs {
		s.setRunning(name, true)
	}
}

// Stop halts the cron runner and waits for running jobs / Arrête et attend les tâches en cours
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasStarted := s.started
	s.started = false
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	if wasStarted {
		s.cron.Stop()
	}
	s.wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for name := range s.jobs {
		s.setRunning(name, false)
	}
	slog.Info("scheduler stopped")
}

// RunNow executes one job synchronously / Exécute une tâche immédiatement
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !s.enter(false) {
		return ErrStopped
	}
	defer s.wg.Done()
	return s.run(ctx, j)
}

// enter registers a run with Stop's wait group unless the scheduler is
// stopped; cron runs also need a started scheduler.
// Enregistre une exécution auprès de Stop sauf si le planificateur est arrêté
func (s *Scheduler) enter(scheduled bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped || (scheduled && !s.started) {
		return false
	}
	s.wg.Add(1)
	return true
}

// Jobs lists registered jobs sorted by name / Liste les tâches triées par nom
func (s *Scheduler) Jobs() []Status {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := Status{Name: j.name, Spec: j.spec}
		// Outcome of a running job is read on the next call / Lu au prochain appel si en cours
		if j.mu.TryLock() {
			st.LastRun, st.LastErr = j.lastRun, j.lastErr
			j.mu.Unlock()
		}
		if schedule, err := cron.ParseStandard(j.spec); err == nil {
			st.Next = schedule.Next(now)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.mu.TryLock() {
		slog.Warn("job skipped, previous run still in progress", "job", j.name)
		return ErrJobRunning
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)
	j.lastRun, j.lastErr = start, err

	if s.metrics != nil {
		s.metrics.RecordJobRun(j.name, err == nil)
	}
	if err != nil {
		return fmt.Errorf("job %s: %w", j.name, err)
	}
	slog.Info("job completed", "job", j.name, "duration", time.Since(start))
	return nil
}

func (s *Scheduler) setRunning(name string, running bool) {
	if s.metrics != nil {
		s.metrics.SetBackgroundTaskStatus(name, running)
	}
}
