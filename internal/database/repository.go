package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides Postgres-backed job-history operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with a connection pool.
func NewRepository(ctx context.Context, connString string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// RecordSubmission inserts a submitted job and returns its ID.
func (r *Repository) RecordSubmission(ctx context.Context, job *JobRecord) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO recommendation_jobs
		    (job_name, job_arn, model_package_name, model_id, container_image,
		     instance_types, status, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		job.JobName, job.JobARN, job.ModelPackageName, job.ModelID,
		job.ContainerImage, job.InstanceTypes, job.Status, job.SubmittedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// UpdateJobStatus updates a job's status and, on terminal states, its
// completion timestamp.
func (r *Repository) UpdateJobStatus(ctx context.Context, jobName, status string) error {
	var err error
	switch status {
	case "COMPLETED", "FAILED", "STOPPED":
		_, err = r.pool.Exec(ctx,
			`UPDATE recommendation_jobs SET status = $1, completed_at = $2 WHERE job_name = $3`,
			status, time.Now(), jobName)
	default:
		_, err = r.pool.Exec(ctx,
			`UPDATE recommendation_jobs SET status = $1 WHERE job_name = $2`,
			status, jobName)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// RecordResults inserts fetched recommendation rows and marks the job
// completed within a single transaction.
func (r *Repository) RecordResults(ctx context.Context, jobName string, results []ResultRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var jobID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM recommendation_jobs WHERE job_name = $1`, jobName,
	).Scan(&jobID)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("job %s not recorded", jobName)
	}
	if err != nil {
		return fmt.Errorf("lookup job: %w", err)
	}

	for _, res := range results {
		_, err = tx.Exec(ctx,
			`INSERT INTO recommendation_results
			    (job_id, instance_type, initial_instance_count,
			     cost_per_hour, cost_per_inference, cost_per_million_inferences,
			     max_invocations_per_minute, model_latency_micros)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			jobID, res.InstanceType, res.InitialInstanceCount,
			res.CostPerHour, res.CostPerInference, res.CostPerMillionInferences,
			res.MaxInvocationsPerMinute, res.ModelLatencyMicros,
		)
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", res.InstanceType, err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE recommendation_jobs SET status = 'COMPLETED', completed_at = $1 WHERE id = $2`,
		time.Now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetJobByName returns a job by its name, or nil if not recorded.
func (r *Repository) GetJobByName(ctx context.Context, jobName string) (*JobRecord, error) {
	var j JobRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, job_name, job_arn, model_package_name, model_id, container_image,
		        instance_types, status, submitted_at, completed_at, created_at
		 FROM recommendation_jobs WHERE job_name = $1`, jobName,
	).Scan(&j.ID, &j.JobName, &j.JobARN, &j.ModelPackageName, &j.ModelID,
		&j.ContainerImage, &j.InstanceTypes, &j.Status, &j.SubmittedAt,
		&j.CompletedAt, &j.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return &j, nil
}

// ListJobs returns the most recent jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_name, job_arn, model_package_name, model_id, container_image,
		        instance_types, status, submitted_at, completed_at, created_at
		 FROM recommendation_jobs
		 ORDER BY submitted_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		if err := rows.Scan(&j.ID, &j.JobName, &j.JobARN, &j.ModelPackageName, &j.ModelID,
			&j.ContainerImage, &j.InstanceTypes, &j.Status, &j.SubmittedAt,
			&j.CompletedAt, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListResults returns the recorded recommendation rows for a job.
func (r *Repository) ListResults(ctx context.Context, jobName string) ([]ResultRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT res.id, res.job_id, res.instance_type, res.initial_instance_count,
		        res.cost_per_hour, res.cost_per_inference, res.cost_per_million_inferences,
		        res.max_invocations_per_minute, res.model_latency_micros, res.created_at
		 FROM recommendation_results res
		 JOIN recommendation_jobs j ON j.id = res.job_id
		 WHERE j.job_name = $1
		 ORDER BY res.cost_per_million_inferences ASC`, jobName)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var res ResultRecord
		if err := rows.Scan(&res.ID, &res.JobID, &res.InstanceType, &res.InitialInstanceCount,
			&res.CostPerHour, &res.CostPerInference, &res.CostPerMillionInferences,
			&res.MaxInvocationsPerMinute, &res.ModelLatencyMicros, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
