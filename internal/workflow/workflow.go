// Package workflow runs the full pipeline: prepare → pack → upload →
// submit → wait → results.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/infersizer/infersizer/internal/archive"
	"github.com/infersizer/infersizer/internal/config"
	"github.com/infersizer/infersizer/internal/database"
	"github.com/infersizer/infersizer/internal/hub"
	"github.com/infersizer/infersizer/internal/modelprep"
	"github.com/infersizer/infersizer/internal/recommender"
	"github.com/infersizer/infersizer/internal/storage"
)

// ModelDownloader fetches model artifacts into a local directory.
type ModelDownloader interface {
	Download(ctx context.Context, modelID, destDir string) ([]string, error)
}

// ArchiveUploader pushes a local archive under a key prefix.
type ArchiveUploader interface {
	Upload(ctx context.Context, localPath, prefix string) (string, error)
}

// ImageVerifier confirms the serving image exists before submission.
type ImageVerifier interface {
	Verify(ctx context.Context, imageURI string) (string, error)
}

// Pipeline holds the stage dependencies. Repo and Verifier may be nil;
// history recording and image preflight are then skipped.
type Pipeline struct {
	Hub      ModelDownloader
	Uploader ArchiveUploader
	Invoker  *recommender.Invoker
	Verifier ImageVerifier
	Repo     database.Repo
}

var _ ModelDownloader = (*hub.Client)(nil)
var _ ArchiveUploader = (*storage.Uploader)(nil)

// Prepare downloads the model and writes the generated code assets and the
// example payload.
func (p *Pipeline) Prepare(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidatePrepare(); err != nil {
		return err
	}

	log.Printf("[prepare] downloading %s to %s", cfg.ModelID, cfg.ModelDir)
	files, err := p.Hub.Download(ctx, cfg.ModelID, cfg.ModelDir)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	log.Printf("[prepare] downloaded %d files", len(files))

	params := modelprep.CodeParams{
		ModelID:             cfg.ModelID,
		ContentType:         cfg.ContentTypes[0],
		TransformersVersion: cfg.TransformersVersion,
		TorchVersion:        cfg.TorchVersion,
	}
	if err := modelprep.WriteCodeAssets(cfg.ModelDir, params); err != nil {
		return err
	}

	if cfg.PayloadPath != "" {
		if err := modelprep.WriteExamplePayload(cfg.PayloadPath, cfg.PayloadText); err != nil {
			return err
		}
	}
	return nil
}

// Archives names the two tarballs the packaging stage produces.
type Archives struct {
	ModelArchive   string
	PayloadArchive string
}

// Pack archives the model bundle and the example payload independently.
func (p *Pipeline) Pack(cfg *config.Config) (*Archives, error) {
	if err := cfg.ValidatePack(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	a := &Archives{
		ModelArchive:   filepath.Join(cfg.OutputDir, "model.tar.gz"),
		PayloadArchive: filepath.Join(cfg.OutputDir, "payload.tar.gz"),
	}

	log.Printf("[pack] archiving %s", cfg.ModelDir)
	if err := archive.Create(cfg.ModelDir, a.ModelArchive); err != nil {
		return nil, fmt.Errorf("archive model: %w", err)
	}
	log.Printf("[pack] archiving %s", cfg.PayloadPath)
	if err := archive.Create(cfg.PayloadPath, a.PayloadArchive); err != nil {
		return nil, fmt.Errorf("archive payload: %w", err)
	}
	return a, nil
}

// Addresses holds the remote locations of the uploaded archives.
type Addresses struct {
	ModelArchiveURL string
	PayloadURL      string
}

// Upload pushes both archives under their fixed prefixes.
func (p *Pipeline) Upload(ctx context.Context, cfg *config.Config, a *Archives) (*Addresses, error) {
	modelURL, err := p.Uploader.Upload(ctx, a.ModelArchive, cfg.ModelPrefix)
	if err != nil {
		return nil, err
	}
	log.Printf("[upload] model archive at %s", modelURL)

	payloadURL, err := p.Uploader.Upload(ctx, a.PayloadArchive, cfg.PayloadPrefix)
	if err != nil {
		return nil, err
	}
	log.Printf("[upload] payload archive at %s", payloadURL)

	return &Addresses{ModelArchiveURL: modelURL, PayloadURL: payloadURL}, nil
}

// Submit validates the descriptor, preflights the image, submits the job,
// and records it to the history repository when one is configured.
func (p *Pipeline) Submit(ctx context.Context, cfg *config.Config, addrs *Addresses) (*recommender.Submission, error) {
	params := recommender.SubmitParams{
		BaseName:         cfg.JobBaseName,
		ContainerImage:   cfg.ContainerImage,
		ModelArchiveURL:  addrs.ModelArchiveURL,
		PayloadURL:       addrs.PayloadURL,
		RoleARN:          cfg.RoleARN,
		Environment:      cfg.Environment,
		ContentTypes:     cfg.ContentTypes,
		ResponseTypes:    cfg.ResponseTypes,
		InstanceTypes:    cfg.InstanceTypes,
		Framework:        cfg.Framework,
		FrameworkVersion: cfg.FrameworkVersion,
		Domain:           cfg.Domain,
		Task:             cfg.Task,
		NearestModelName: cfg.NearestModelName,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if p.Verifier != nil {
		digest, err := p.Verifier.Verify(ctx, cfg.ContainerImage)
		if err != nil {
			return nil, fmt.Errorf("image preflight: %w", err)
		}
		if digest != "" {
			log.Printf("[submit] image %s resolved to %s", cfg.ContainerImage, digest)
		}
	}

	sub, err := p.Invoker.Submit(ctx, params)
	if err != nil {
		return nil, err
	}

	if p.Repo != nil {
		job := &database.JobRecord{
			JobName:          sub.JobName,
			JobARN:           sub.JobARN,
			ModelPackageName: sub.ModelPackageName,
			ModelID:          cfg.ModelID,
			ContainerImage:   cfg.ContainerImage,
			InstanceTypes:    cfg.InstanceTypes,
			Status:           "SUBMITTED",
			SubmittedAt:      sub.SubmittedAt,
		}
		if _, err := p.Repo.RecordSubmission(ctx, job); err != nil {
			log.Printf("[submit] WARN: record history: %v", err)
		}
	}
	return sub, nil
}

// Results fetches the job's recommendations and records them to the
// history repository when one is configured.
func (p *Pipeline) Results(ctx context.Context, jobName string) ([]recommender.Row, error) {
	rows, err := p.Invoker.FetchResults(ctx, jobName)
	if err != nil {
		return nil, err
	}

	if p.Repo != nil {
		records := make([]database.ResultRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, database.ResultRecord{
				InstanceType:             r.InstanceType,
				InitialInstanceCount:     int(r.InitialInstanceCount),
				CostPerHour:              r.CostPerHour,
				CostPerInference:         r.CostPerInference,
				CostPerMillionInferences: r.CostPerMillionInferences,
				MaxInvocationsPerMinute:  int(r.MaxInvocationsPerMinute),
				ModelLatencyMicros:       int(r.ModelLatencyMicros),
			})
		}
		if err := p.Repo.RecordResults(ctx, jobName, records); err != nil {
			log.Printf("[results] WARN: record history: %v", err)
		}
	}
	return rows, nil
}

// Run executes the pipeline end to end and returns the projected rows.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) ([]recommender.Row, error) {
	// Validate everything up front so a misconfigured submission never
	// gets as far as downloading a model.
	if err := cfg.ValidateSubmit(); err != nil {
		return nil, err
	}

	if err := p.Prepare(ctx, cfg); err != nil {
		return nil, err
	}
	archives, err := p.Pack(cfg)
	if err != nil {
		return nil, err
	}
	addrs, err := p.Upload(ctx, cfg, archives)
	if err != nil {
		return nil, err
	}
	sub, err := p.Submit(ctx, cfg, addrs)
	if err != nil {
		return nil, err
	}

	log.Printf("[run] waiting for job %s", sub.JobName)
	if err := p.Invoker.Wait(ctx, sub.JobName); err != nil {
		if p.Repo != nil {
			// A timed-out wait is not a failed job: the service may still
			// be running it, so don't assert FAILED.
			status := "FAILED"
			var wte *recommender.WaitTimeoutError
			if errors.As(err, &wte) {
				status = "TIMED_OUT"
			}
			if uerr := p.Repo.UpdateJobStatus(ctx, sub.JobName, status); uerr != nil {
				log.Printf("[run] WARN: record %s: %v", status, uerr)
			}
		}
		return nil, err
	}
	return p.Results(ctx, sub.JobName)
}
