package database

import (
	"time"
)

// JobRecord is one submitted recommendation job in the history table.
type JobRecord struct {
	ID               string     `json:"id"`
	JobName          string     `json:"job_name"`
	JobARN           string     `json:"job_arn"`
	ModelPackageName string     `json:"model_package_name"`
	ModelID          string     `json:"model_id"`
	ContainerImage   string     `json:"container_image"`
	InstanceTypes    []string   `json:"instance_types"`
	Status           string     `json:"status"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ResultRecord is one fetched recommendation row tied to a job.
type ResultRecord struct {
	ID                       string    `json:"id"`
	JobID                    string    `json:"job_id"`
	InstanceType             string    `json:"instance_type"`
	InitialInstanceCount     int       `json:"initial_instance_count"`
	CostPerHour              float64   `json:"cost_per_hour"`
	CostPerInference         float64   `json:"cost_per_inference"`
	CostPerMillionInferences float64   `json:"cost_per_million_inferences"`
	MaxInvocationsPerMinute  int       `json:"max_invocations_per_minute"`
	ModelLatencyMicros       int       `json:"model_latency_micros"`
	CreatedAt                time.Time `json:"created_at"`
}
