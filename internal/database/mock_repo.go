package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockRepo is an in-memory implementation of Repo for testing.
type MockRepo struct {
	mu      sync.Mutex
	jobs    map[string]*JobRecord     // keyed by job name
	results map[string][]ResultRecord // keyed by job name
	nextID  int
}

// NewMockRepo creates a new MockRepo.
func NewMockRepo() *MockRepo {
	return &MockRepo{
		jobs:    make(map[string]*JobRecord),
		results: make(map[string][]ResultRecord),
	}
}

func (m *MockRepo) RecordSubmission(_ context.Context, job *JobRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.JobName]; exists {
		return "", fmt.Errorf("job %s already recorded", job.JobName)
	}
	m.nextID++
	job.ID = fmt.Sprintf("job-%08d", m.nextID)
	job.CreatedAt = time.Now()
	m.jobs[job.JobName] = job
	return job.ID, nil
}

func (m *MockRepo) UpdateJobStatus(_ context.Context, jobName, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobName]
	if !ok {
		return fmt.Errorf("job %s not recorded", jobName)
	}
	job.Status = status
	switch status {
	case "COMPLETED", "FAILED", "STOPPED":
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func (m *MockRepo) RecordResults(_ context.Context, jobName string, results []ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobName]
	if !ok {
		return fmt.Errorf("job %s not recorded", jobName)
	}
	stored := make([]ResultRecord, len(results))
	copy(stored, results)
	for i := range stored {
		m.nextID++
		stored[i].ID = fmt.Sprintf("res-%08d", m.nextID)
		stored[i].JobID = job.ID
		stored[i].CreatedAt = time.Now()
	}
	m.results[jobName] = stored
	job.Status = "COMPLETED"
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

func (m *MockRepo) GetJobByName(_ context.Context, jobName string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[jobName], nil
}

func (m *MockRepo) ListJobs(_ context.Context, limit int) ([]JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	jobs := make([]JobRecord, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *MockRepo) ListResults(_ context.Context, jobName string) ([]ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := m.results[jobName]
	sorted := make([]ResultRecord, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CostPerMillionInferences < sorted[j].CostPerMillionInferences
	})
	return sorted, nil
}

// Compile-time check that *MockRepo implements Repo.
var _ Repo = (*MockRepo)(nil)
