package database

import "context"

// Repo defines the interface for job-history operations. The concrete
// *Repository satisfies this interface. Use this interface as a dependency
// in consumers to enable testing with mocks.
type Repo interface {
	RecordSubmission(ctx context.Context, job *JobRecord) (string, error)
	UpdateJobStatus(ctx context.Context, jobName, status string) error
	RecordResults(ctx context.Context, jobName string, results []ResultRecord) error
	GetJobByName(ctx context.Context, jobName string) (*JobRecord, error)
	ListJobs(ctx context.Context, limit int) ([]JobRecord, error)
	ListResults(ctx context.Context, jobName string) ([]ResultRecord, error)
}

// Compile-time check that *Repository implements Repo.
var _ Repo = (*Repository)(nil)
