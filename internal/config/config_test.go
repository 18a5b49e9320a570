package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Framework != "PYTORCH" {
		t.Errorf("Framework = %s, want PYTORCH", cfg.Framework)
	}
	if !reflect.DeepEqual(cfg.ContentTypes, []string{"application/x-text"}) {
		t.Errorf("ContentTypes = %v", cfg.ContentTypes)
	}
	if !reflect.DeepEqual(cfg.ResponseTypes, []string{"application/json"}) {
		t.Errorf("ResponseTypes = %v", cfg.ResponseTypes)
	}
	if cfg.RetryAttempts != 4 || cfg.RetryBaseDelay.Std() != 2*time.Second {
		t.Errorf("retry defaults = %d/%v", cfg.RetryAttempts, cfg.RetryBaseDelay)
	}
	if cfg.OutputDir != "" {
		t.Errorf("OutputDir should have no default, got %q", cfg.OutputDir)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
region: us-west-2
bucket: sizing-artifacts
model_id: distilbert-base-uncased-finetuned-sst-2-english
model_dir: /tmp/model
output_dir: /tmp/out
job_base_name: sentiment-sizing
container_image: 123456789012.dkr.ecr.us-west-2.amazonaws.com/pytorch-inference:1.13.1-cpu-py39
role_arn: arn:aws:iam::123456789012:role/recommender
framework_version: 1.13.1
instance_types: [ml.c7g.4xlarge, ml.m5.xlarge]
environment:
  SAGEMAKER_PROGRAM: inference.py
poll_interval: 10s
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != "us-west-2" {
		t.Errorf("Region = %s", cfg.Region)
	}
	if cfg.Environment["SAGEMAKER_PROGRAM"] != "inference.py" {
		t.Errorf("Environment = %v", cfg.Environment)
	}
	if cfg.PollInterval.Std() != 10*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	// Values absent from the file keep their defaults.
	if cfg.Framework != "PYTORCH" {
		t.Errorf("Framework = %s, want default PYTORCH", cfg.Framework)
	}
	if err := cfg.ValidateSubmit(); err != nil {
		t.Errorf("ValidateSubmit: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateSubmit_ReportsAllMissing(t *testing.T) {
	cfg := &Config{}

	err := cfg.ValidateSubmit()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	want := []string{
		"bucket", "container_image", "content_types", "domain", "framework",
		"framework_version", "instance_types", "job_base_name", "region",
		"response_types", "role_arn", "task",
	}
	if !reflect.DeepEqual(cfgErr.Fields, want) {
		t.Errorf("Fields = %v\nwant     %v", cfgErr.Fields, want)
	}
}

func TestValidateSubmit_SingleMissing(t *testing.T) {
	cfg := Default()
	cfg.Region = "us-west-2"
	cfg.Bucket = "b"
	cfg.JobBaseName = "j"
	cfg.ContainerImage = "image"
	cfg.RoleARN = "arn"
	cfg.InstanceTypes = []string{"ml.c7g.4xlarge"}
	cfg.FrameworkVersion = "" // the one gap

	err := cfg.ValidateSubmit()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !reflect.DeepEqual(cfgErr.Fields, []string{"framework_version"}) {
		t.Errorf("Fields = %v, want [framework_version]", cfgErr.Fields)
	}
}

func TestValidatePrepare(t *testing.T) {
	cfg := &Config{ModelDir: "/tmp/model", ContentTypes: []string{"application/x-text"}}
	err := cfg.ValidatePrepare()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !reflect.DeepEqual(cfgErr.Fields, []string{"model_id"}) {
		t.Errorf("Fields = %v", cfgErr.Fields)
	}

	cfg.ModelID = "distilbert-base-uncased-finetuned-sst-2-english"
	if err := cfg.ValidatePrepare(); err != nil {
		t.Errorf("ValidatePrepare: %v", err)
	}
}

func TestValidatePrepare_EmptiedContentTypes(t *testing.T) {
	// A config file can override the default with an empty list; the
	// generated script binds content_types[0], so that must fail here.
	cfg := Default()
	cfg.ModelID = "distilbert-base-uncased-finetuned-sst-2-english"
	cfg.ModelDir = "/tmp/model"
	cfg.ContentTypes = []string{}

	err := cfg.ValidatePrepare()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !reflect.DeepEqual(cfgErr.Fields, []string{"content_types"}) {
		t.Errorf("Fields = %v, want [content_types]", cfgErr.Fields)
	}
}

func TestValidatePack(t *testing.T) {
	cfg := &Config{ModelDir: "/tmp/model", PayloadPath: "/tmp/payload.txt"}
	err := cfg.ValidatePack()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !reflect.DeepEqual(cfgErr.Fields, []string{"output_dir"}) {
		t.Errorf("Fields = %v", cfgErr.Fields)
	}
}

func TestConfigurationError_SortsFields(t *testing.T) {
	err := NewConfigurationError("role_arn", "bucket", "framework")
	if !reflect.DeepEqual(err.Fields, []string{"bucket", "framework", "role_arn"}) {
		t.Errorf("Fields = %v", err.Fields)
	}
	msg := err.Error()
	if msg != "missing required configuration: bucket, framework, role_arn" {
		t.Errorf("Error() = %q", msg)
	}
}
