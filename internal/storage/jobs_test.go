package storage

import (
	"errors"
	"testing"
	"time"
)

const buildJob = "knowledge_build"

func enqueue(t *testing.T, s *Store, job Job) {
	t.Helper()
	if job.Type == "" {
		job.Type = buildJob
	}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob(%s): %v", job.ID, err)
	}
}

func claim(t *testing.T, s *Store, types ...string) *Job {
	t.Helper()
	if len(types) == 0 {
		types = []string{buildJob}
	}
	j, err := s.ClaimNextJob(types)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	return j
}

func TestClaimNextJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "b1", PayloadJSON: `{"seeds":[]}`, MaxAttempts: 3})

	got := claim(t, s)
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "b1" {
		t.Errorf("ID = %q, want %q", got.ID, "b1")
	}
	if got.Status != JobRunning {
		t.Errorf("Status = %q, want %q", got.Status, JobRunning)
	}
	if got.PayloadJSON != `{"seeds":[]}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}

	if again := claim(t, s); again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_Nothing(t *testing.T) {
	tests := []struct {
		name  string
		job   *Job
		types []string
	}{
		{"empty queue", nil, []string{buildJob}},
		{"not yet runnable", &Job{ID: "later", RunAfter: time.Now().Add(time.Hour)}, []string{buildJob}},
		{"other type", &Job{ID: "other", Type: "reindex"}, []string{buildJob}},
		{"no types", &Job{ID: "any"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			if tt.job != nil {
				enqueue(t, s, *tt.job)
			}
			got, err := s.ClaimNextJob(tt.types)
			if err != nil {
				t.Fatalf("ClaimNextJob: %v", err)
			}
			if got != nil {
				t.Errorf("claimed %q, want nothing", got.ID)
			}
		})
	}
}

func TestClaimNextJob_OldestFirst(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	enqueue(t, s, Job{ID: "newer", RunAfter: now.Add(-time.Minute)})
	enqueue(t, s, Job{ID: "older", RunAfter: now.Add(-time.Hour)})

	for _, want := range []string{"older", "newer"} {
		got := claim(t, s)
		if got == nil || got.ID != want {
			t.Fatalf("claimed %+v, want %q", got, want)
		}
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "b1"})
	claim(t, s)

	if err := s.CompleteJob("b1", `{"documents":4}`); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	got, err := s.GetJob("b1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobCompleted {
		t.Errorf("Status = %q, want %q", got.Status, JobCompleted)
	}
	if got.ResultJSON != `{"documents":4}` {
		t.Errorf("ResultJSON = %q", got.ResultJSON)
	}
}

func TestFailJob(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		wantStatus  string
	}{
		{"retries left", 3, JobPending},
		{"last attempt", 1, JobFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			enqueue(t, s, Job{ID: "b1", MaxAttempts: tt.maxAttempts})
			claim(t, s)

			before := time.Now().UTC().Truncate(time.Second)
			if err := s.FailJob("b1", "fetch failed"); err != nil {
				t.Fatalf("FailJob: %v", err)
			}

			got, err := s.GetJob("b1")
			if err != nil {
				t.Fatalf("GetJob: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Attempts != 1 {
				t.Errorf("Attempts = %d, want 1", got.Attempts)
			}
			if got.LastError != "fetch failed" {
				t.Errorf("LastError = %q, want %q", got.LastError, "fetch failed")
			}
			if tt.wantStatus == JobPending && got.RunAfter.Before(before.Add(baseRetryDelay)) {
				t.Errorf("RunAfter = %v, want at least %v", got.RunAfter, before.Add(baseRetryDelay))
			}
		})
	}
}

func TestFailJob_RetriedJobNotImmediatelyClaimable(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "b1", MaxAttempts: 2})
	claim(t, s)
	if err := s.FailJob("b1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if got := claim(t, s); got != nil {
		t.Errorf("claimed %q during retry delay", got.ID)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{20, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJobs_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetJob("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob error = %v, want ErrNotFound", err)
	}
	if err := s.CompleteJob("missing", "{}"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob error = %v, want ErrNotFound", err)
	}
	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob error = %v, want ErrNotFound", err)
	}
}

func TestEnqueueJob_Defaults(t *testing.T) {
	s := openTestStore(t)
	enqueue(t, s, Job{ID: "b1"})

	got, err := s.GetJob("b1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.PayloadJSON != "{}" {
		t.Errorf("PayloadJSON = %q, want {}", got.PayloadJSON)
	}
	if got.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", got.MaxAttempts)
	}
	if got.Status != JobPending {
		t.Errorf("Status = %q, want %q", got.Status, JobPending)
	}
	if got.RunAfter.IsZero() || got.CreatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", got)
	}
}
