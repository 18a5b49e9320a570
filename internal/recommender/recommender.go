// Package recommender submits inference recommendation jobs to SageMaker
// and projects their results into a cost comparison.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/infersizer/infersizer/internal/config"
)

// NotFoundError reports a result lookup against a job that does not exist
// or has not completed yet.
type NotFoundError struct {
	JobName string
	Reason  string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("job %s: %s", e.JobName, e.Reason)
	}
	return fmt.Sprintf("job %s not found", e.JobName)
}

// WaitTimeoutError reports a wait deadline that expired while the job was
// still running inside the managed service. The job itself may yet complete.
type WaitTimeoutError struct {
	JobName    string
	Timeout    time.Duration
	LastStatus string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not complete within %v (last status %s)", e.JobName, e.Timeout, e.LastStatus)
}

type sageMakerAPI interface {
	CreateModelPackage(ctx context.Context, params *sagemaker.CreateModelPackageInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelPackageOutput, error)
	CreateInferenceRecommendationsJob(ctx context.Context, params *sagemaker.CreateInferenceRecommendationsJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateInferenceRecommendationsJobOutput, error)
	DescribeInferenceRecommendationsJob(ctx context.Context, params *sagemaker.DescribeInferenceRecommendationsJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeInferenceRecommendationsJobOutput, error)
}

// Invoker drives the managed recommendation service.
type Invoker struct {
	client sageMakerAPI

	retryAttempts  int
	retryBaseDelay time.Duration
	pollInterval   time.Duration
	waitTimeout    time.Duration
}

// Option adjusts Invoker behavior.
type Option func(*Invoker)

// WithRetry sets the bounded retry policy for submit/describe calls.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(inv *Invoker) {
		inv.retryAttempts = attempts
		inv.retryBaseDelay = baseDelay
	}
}

// WithPolling sets the interval and deadline Wait uses.
func WithPolling(interval, timeout time.Duration) Option {
	return func(inv *Invoker) {
		inv.pollInterval = interval
		inv.waitTimeout = timeout
	}
}

// New creates an Invoker for the given region using the default credential
// chain.
func New(ctx context.Context, region string, opts ...Option) (*Invoker, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClient(sagemaker.NewFromConfig(awsCfg), opts...), nil
}

// NewWithClient wires an explicit service client. Used by tests.
func NewWithClient(client sageMakerAPI, opts ...Option) *Invoker {
	inv := &Invoker{
		client:         client,
		retryAttempts:  4,
		retryBaseDelay: 2 * time.Second,
		pollInterval:   30 * time.Second,
		waitTimeout:    2 * time.Hour,
	}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

// SubmitParams is the full job descriptor: everything a submission
// references. Write-once at submission time.
type SubmitParams struct {
	BaseName         string
	ContainerImage   string
	ModelArchiveURL  string
	PayloadURL       string
	RoleARN          string
	Environment      map[string]string
	ContentTypes     []string
	ResponseTypes    []string
	InstanceTypes    []string
	Framework        string
	FrameworkVersion string
	Domain           string
	Task             string
	NearestModelName string
}

// Validate checks every required parameter and reports all missing fields
// in one ConfigurationError. Runs before any network call.
func (p SubmitParams) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("base_name", p.BaseName)
	check("container_image", p.ContainerImage)
	check("model_archive_url", p.ModelArchiveURL)
	check("payload_url", p.PayloadURL)
	check("role_arn", p.RoleARN)
	check("framework", p.Framework)
	check("framework_version", p.FrameworkVersion)
	check("domain", p.Domain)
	check("task", p.Task)
	if len(p.InstanceTypes) == 0 {
		missing = append(missing, "instance_types")
	}
	if len(p.ContentTypes) == 0 {
		missing = append(missing, "content_types")
	}
	if len(p.ResponseTypes) == 0 {
		missing = append(missing, "response_types")
	}
	if len(missing) > 0 {
		return config.NewConfigurationError(missing...)
	}
	return nil
}

// Submission identifies a submitted job.
type Submission struct {
	JobName          string    `json:"job_name"`
	JobARN           string    `json:"job_arn"`
	ModelPackageName string    `json:"model_package_name"`
	ModelPackageARN  string    `json:"model_package_arn"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Submit registers a model package and starts a recommendations job over
// the candidate instance types. The job runs asynchronously inside the
// managed service; use Wait to observe its terminal state.
func (inv *Invoker) Submit(ctx context.Context, p SubmitParams) (*Submission, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	pkgName := UniqueName(p.BaseName + "-model")
	jobName := UniqueName(p.BaseName + "-job")

	instanceTypes := make([]smtypes.ProductionVariantInstanceType, 0, len(p.InstanceTypes))
	for _, it := range p.InstanceTypes {
		instanceTypes = append(instanceTypes, smtypes.ProductionVariantInstanceType(it))
	}

	pkgInput := &sagemaker.CreateModelPackageInput{
		ModelPackageName: aws.String(pkgName),
		Domain:           aws.String(p.Domain),
		Task:             aws.String(p.Task),
		SamplePayloadUrl: aws.String(p.PayloadURL),
		InferenceSpecification: &smtypes.InferenceSpecification{
			Containers: []smtypes.ModelPackageContainerDefinition{
				{
					Image:            aws.String(p.ContainerImage),
					ModelDataUrl:     aws.String(p.ModelArchiveURL),
					Environment:      p.Environment,
					Framework:        aws.String(p.Framework),
					FrameworkVersion: aws.String(p.FrameworkVersion),
					NearestModelName: nonEmptyString(p.NearestModelName),
				},
			},
			SupportedContentTypes:                   p.ContentTypes,
			SupportedResponseMIMETypes:              p.ResponseTypes,
			SupportedRealtimeInferenceInstanceTypes: instanceTypes,
		},
	}

	var pkgOut *sagemaker.CreateModelPackageOutput
	err := inv.withRetry(ctx, "create model package", func() error {
		var err error
		pkgOut, err = inv.client.CreateModelPackage(ctx, pkgInput)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create model package %s: %w", pkgName, err)
	}

	jobInput := &sagemaker.CreateInferenceRecommendationsJobInput{
		JobName: aws.String(jobName),
		JobType: smtypes.RecommendationJobTypeDefault,
		RoleArn: aws.String(p.RoleARN),
		InputConfig: &smtypes.RecommendationJobInputConfig{
			ModelPackageVersionArn: pkgOut.ModelPackageArn,
		},
	}

	var jobOut *sagemaker.CreateInferenceRecommendationsJobOutput
	err = inv.withRetry(ctx, "create recommendations job", func() error {
		var err error
		jobOut, err = inv.client.CreateInferenceRecommendationsJob(ctx, jobInput)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create recommendations job %s: %w", jobName, err)
	}

	log.Printf("[submit] job %s submitted (model package %s)", jobName, pkgName)
	return &Submission{
		JobName:          jobName,
		JobARN:           aws.ToString(jobOut.JobArn),
		ModelPackageName: pkgName,
		ModelPackageARN:  aws.ToString(pkgOut.ModelPackageArn),
		SubmittedAt:      time.Now().UTC(),
	}, nil
}

// Row is one candidate instance-type configuration with its cost and
// throughput metrics, plus the locally derived cost per million inferences.
type Row struct {
	InstanceType             string  `json:"instance_type"`
	InitialInstanceCount     int32   `json:"initial_instance_count"`
	CostPerHour              float64 `json:"cost_per_hour"`
	CostPerInference         float64 `json:"cost_per_inference"`
	CostPerMillionInferences float64 `json:"cost_per_million_inferences"`
	MaxInvocationsPerMinute  int32   `json:"max_invocations_per_minute"`
	ModelLatencyMicros       int32   `json:"model_latency_micros"`
	EndpointName             string  `json:"endpoint_name,omitempty"`
}

// FetchResults retrieves the job's recommendation list and projects every
// recommendation into a Row. A job that does not exist or has not reached
// COMPLETED is a NotFoundError; a FAILED job surfaces its failure reason.
func (inv *Invoker) FetchResults(ctx context.Context, jobName string) ([]Row, error) {
	out, err := inv.describe(ctx, jobName)
	if err != nil {
		return nil, err
	}

	switch out.Status {
	case smtypes.RecommendationJobStatusCompleted:
	case smtypes.RecommendationJobStatusFailed:
		return nil, fmt.Errorf("job %s failed: %s", jobName, aws.ToString(out.FailureReason))
	default:
		return nil, &NotFoundError{JobName: jobName, Reason: fmt.Sprintf("not completed (status %s)", out.Status)}
	}

	if len(out.InferenceRecommendations) == 0 {
		return nil, &NotFoundError{JobName: jobName, Reason: "completed with no recommendations"}
	}

	rows := make([]Row, 0, len(out.InferenceRecommendations))
	for _, rec := range out.InferenceRecommendations {
		rows = append(rows, projectRow(rec))
	}
	return rows, nil
}

// SelectRow picks the row for the given instance type label. Returns a
// NotFoundError rather than a default row when the label matches nothing.
func SelectRow(rows []Row, jobName, instanceType string) (Row, error) {
	for _, r := range rows {
		if r.InstanceType == instanceType {
			return r, nil
		}
	}
	return Row{}, &NotFoundError{
		JobName: jobName,
		Reason:  fmt.Sprintf("no recommendation for instance type %s", instanceType),
	}
}

func projectRow(rec smtypes.InferenceRecommendation) Row {
	var row Row
	if m := rec.Metrics; m != nil {
		row.CostPerHour = float64(aws.ToFloat32(m.CostPerHour))
		row.CostPerInference = float64(aws.ToFloat32(m.CostPerInference))
		row.CostPerMillionInferences = row.CostPerInference * 1_000_000
		row.MaxInvocationsPerMinute = aws.ToInt32(m.MaxInvocations)
		row.ModelLatencyMicros = aws.ToInt32(m.ModelLatency)
	}
	if ec := rec.EndpointConfiguration; ec != nil {
		row.InstanceType = string(ec.InstanceType)
		row.InitialInstanceCount = aws.ToInt32(ec.InitialInstanceCount)
		row.EndpointName = aws.ToString(ec.EndpointName)
	}
	return row
}

// Wait polls the job until it reaches a terminal state or the deadline
// passes. The external state machine is SUBMITTED → RUNNING → COMPLETED |
// FAILED; intermediate states are observed only, never acted on.
func (inv *Invoker) Wait(ctx context.Context, jobName string) error {
	deadline := time.Now().Add(inv.waitTimeout)
	lastStatus := "UNKNOWN"
	for time.Now().Before(deadline) {
		out, err := inv.describe(ctx, jobName)
		if err != nil {
			return err
		}

		switch out.Status {
		case smtypes.RecommendationJobStatusCompleted:
			return nil
		case smtypes.RecommendationJobStatusFailed:
			return fmt.Errorf("job %s failed: %s", jobName, aws.ToString(out.FailureReason))
		case smtypes.RecommendationJobStatusStopped:
			return fmt.Errorf("job %s was stopped", jobName)
		}
		lastStatus = string(out.Status)

		log.Printf("[wait] job %s status %s", jobName, out.Status)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(inv.pollInterval):
		}
	}
	return &WaitTimeoutError{JobName: jobName, Timeout: inv.waitTimeout, LastStatus: lastStatus}
}

func (inv *Invoker) describe(ctx context.Context, jobName string) (*sagemaker.DescribeInferenceRecommendationsJobOutput, error) {
	var out *sagemaker.DescribeInferenceRecommendationsJobOutput
	err := inv.withRetry(ctx, "describe recommendations job", func() error {
		var err error
		out, err = inv.client.DescribeInferenceRecommendationsJob(ctx, &sagemaker.DescribeInferenceRecommendationsJobInput{
			JobName: aws.String(jobName),
		})
		return err
	})
	if err != nil {
		var rnf *smtypes.ResourceNotFound
		if errors.As(err, &rnf) {
			return nil, &NotFoundError{JobName: jobName}
		}
		return nil, fmt.Errorf("describe job %s: %w", jobName, err)
	}
	return out, nil
}

func nonEmptyString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
