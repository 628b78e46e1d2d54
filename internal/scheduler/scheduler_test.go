package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMetrics struct {
	mu      sync.Mutex
	runs    map[string][2]int // ok, failed
	running map[string]bool
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string][2]int{}, running: map[string]bool{}}
}

func (m *fakeMetrics) RecordJobRun(job string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[job]
	if ok {
		r[0]++
	} else {
		r[1]++
	}
	m.runs[job] = r
}

func (m *fakeMetrics) SetBackgroundTaskStatus(name string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[name] = running
}

func TestScheduler_Add(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{"descriptor", "@daily", false},
		{"interval", "@every 6h", false},
		{"five fields", "30 3 * * *", false},
		{"garbage", "every day", true},
		{"six fields", "0 30 3 * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, 0)
			err := s.Add("job", tt.spec, func(context.Context) error { return nil })
			if (err != nil) != tt.wantErr {
				t.Errorf("Add(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_AddDuplicate(t *testing.T) {
	s := New(nil, 0)
	noop := func(context.Context) error { return nil }
	if err := s.Add(JobTokenPurge, "@daily", noop); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(JobTokenPurge, "@hourly", noop); err == nil {
		t.Error("Add() should refuse a duplicate name")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	m := newFakeMetrics()
	s := New(m, time.Second)
	boom := errors.New("boom")

	calls := 0
	if err := s.Add("ok", "@daily", func(context.Context) error { calls++; return nil }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("fail", "@daily", func(context.Context) error { return boom }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.RunNow(context.Background(), "ok"); err != nil {
		t.Errorf("RunNow(ok) error = %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if err := s.RunNow(context.Background(), "fail"); !errors.Is(err, boom) {
		t.Errorf("RunNow(fail) error = %v, want boom", err)
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) error = %v, want ErrUnknownJob", err)
	}

	if got := m.runs["ok"]; got != [2]int{1, 0} {
		t.Errorf("ok runs = %v", got)
	}
	if got := m.runs["fail"]; got != [2]int{0, 1} {
		t.Errorf("fail runs = %v", got)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "fail" || jobs[1].Name != "ok" {
		t.Fatalf("Jobs() = %+v, want sorted names", jobs)
	}
	if !errors.Is(jobs[0].LastErr, boom) || jobs[1].LastErr != nil {
		t.Errorf("Jobs() last errors = %v / %v", jobs[0].LastErr, jobs[1].LastErr)
	}
	if jobs[1].LastRun.IsZero() || jobs[1].Next.Before(time.Now()) {
		t.Errorf("Jobs() ok = %+v", jobs[1])
	}
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(nil, time.Second)
	started := make(chan struct{})
	release := make(chan struct{})
	if err := s.Add("slow", "@daily", func(context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("Overlapping RunNow() error = %v, want ErrJobRunning", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("First RunNow() error = %v", err)
	}
}

func TestScheduler_TimeoutCancelsJob(t *testing.T) {
	s := New(nil, 20*time.Millisecond)
	if err := s.Add("stuck", "@daily", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.RunNow(context.Background(), "stuck"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunNow() error = %v, want deadline exceeded", err)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	m := newFakeMetrics()
	s := New(m, 0)
	if err := s.Add(JobDocumentExpiry, "@daily", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start()
	s.Start()
	m.mu.Lock()
	running := m.running[JobDocumentExpiry]
	m.mu.Unlock()
	if !running {
		t.Error("Start() should flag the job as running")
	}

	s.Stop()
	m.mu.Lock()
	running = m.running[JobDocumentExpiry]
	m.mu.Unlock()
	if running {
		t.Error("Stop() should clear the running flag")
	}
}

func TestScheduler_StopWaitsForScheduledRun(t *testing.T) {
	s := New(nil, 0)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	if err := s.Add(JobTokenPurge, "@every 1s", func(context.Context) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run never fired")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop() returned while a run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return after the run finished")
	}

	if err := s.RunNow(context.Background(), JobTokenPurge); !errors.Is(err, ErrStopped) {
		t.Errorf("RunNow() after Stop error = %v, want ErrStopped", err)
	}
}

func TestScheduler_RunNowRacingStop(t *testing.T) {
	s := New(nil, time.Second)
	if err := s.Add(JobBackup, "@daily", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunNow(context.Background(), JobBackup)
			if err != nil && !errors.Is(err, ErrStopped) && !errors.Is(err, ErrJobRunning) {
				t.Errorf("RunNow() error = %v", err)
			}
		}()
	}
	s.Stop()
	wg.Wait()
}

type purger struct {
	n      int64
	err    error
	before time.Time
}

func (p *purger) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return p.n, p.err
}

type expirer struct{ calls int }

func (e *expirer) ExpireDue(context.Context) (int, error) {
	e.calls++
	return 2, nil
}

func TestJobs(t *testing.T) {
	p := &purger{n: 3}
	if err := TokenPurge(p)(context.Background()); err != nil {
		t.Errorf("TokenPurge() error = %v", err)
	}
	if time.Since(p.before) > time.Minute {
		t.Errorf("TokenPurge() cutoff = %v, want now", p.before)
	}

	p.err = errors.New("db locked")
	if err := TokenPurge(p)(context.Background()); err == nil {
		t.Error("TokenPurge() should return the store error")
	}

	e := &expirer{}
	if err := DocumentExpiry(e)(context.Background()); err != nil || e.calls != 1 {
		t.Errorf("DocumentExpiry() = %v after %d calls", err, e.calls)
	}
}
