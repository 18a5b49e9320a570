// Package config holds the workflow configuration surface and its
// fail-fast validation.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config externalizes every value the workflow needs. All paths are
// caller-supplied; nothing falls back to the process working directory.
type Config struct {
	Region string `yaml:"region"`

	// Object storage.
	Bucket        string `yaml:"bucket"`
	ModelPrefix   string `yaml:"model_prefix"`
	PayloadPrefix string `yaml:"payload_prefix"`

	// Model preparation.
	ModelID             string `yaml:"model_id"`
	ModelDir            string `yaml:"model_dir"`
	PayloadPath         string `yaml:"payload_path"`
	PayloadText         string `yaml:"payload_text"`
	HFTokenSecret       string `yaml:"hf_token_secret"`
	TransformersVersion string `yaml:"transformers_version"`
	TorchVersion        string `yaml:"torch_version"`

	// Packaging. Archives land here; nothing defaults to the process
	// working directory.
	OutputDir string `yaml:"output_dir"`

	// Submission.
	JobBaseName      string            `yaml:"job_base_name"`
	ContainerImage   string            `yaml:"container_image"`
	RoleARN          string            `yaml:"role_arn"`
	InstanceTypes    []string          `yaml:"instance_types"`
	Environment      map[string]string `yaml:"environment"`
	ContentTypes     []string          `yaml:"content_types"`
	ResponseTypes    []string          `yaml:"response_types"`
	Framework        string            `yaml:"framework"`
	FrameworkVersion string            `yaml:"framework_version"`
	Domain           string            `yaml:"domain"`
	Task             string            `yaml:"task"`
	NearestModelName string            `yaml:"nearest_model_name"`

	// Retry and polling knobs for the recommender calls.
	RetryAttempts  int      `yaml:"retry_attempts"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`
	PollInterval   Duration `yaml:"poll_interval"`
	WaitTimeout    Duration `yaml:"wait_timeout"`

	// Optional job-history repository. The workflow runs without it.
	DatabaseURL string `yaml:"database_url"`
}

// Default returns a Config with the non-empty defaults applied.
func Default() *Config {
	return &Config{
		ModelPrefix:         "model-archives",
		PayloadPrefix:       "payload-archives",
		PayloadText:         "This pretrained model makes instance selection painless.",
		TransformersVersion: "4.26.0",
		TorchVersion:        "1.13.1",
		ContentTypes:        []string{"application/x-text"},
		ResponseTypes:       []string{"application/json"},
		Framework:           "PYTORCH",
		Domain:              "NATURAL_LANGUAGE_PROCESSING",
		Task:                "TEXT_CLASSIFICATION",
		RetryAttempts:       4,
		RetryBaseDelay:      Duration(2 * time.Second),
		PollInterval:        Duration(30 * time.Second),
		WaitTimeout:         Duration(2 * time.Hour),
	}
}

// Duration decodes YAML strings like "30s" or "2h". The yaml package does
// not handle time.Duration on its own.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigurationError reports required parameters that were never set. It is
// raised before the first network call so a submission can never proceed
// with an undefined value.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Fields, ", "))
}

// NewConfigurationError builds a ConfigurationError with a sorted field list.
func NewConfigurationError(fields ...string) *ConfigurationError {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return &ConfigurationError{Fields: sorted}
}

// ValidateSubmit checks every parameter a job submission requires and
// returns a ConfigurationError naming all missing fields at once.
func (c *Config) ValidateSubmit() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("region", c.Region)
	check("bucket", c.Bucket)
	check("job_base_name", c.JobBaseName)
	check("container_image", c.ContainerImage)
	check("role_arn", c.RoleARN)
	check("framework", c.Framework)
	check("framework_version", c.FrameworkVersion)
	check("domain", c.Domain)
	check("task", c.Task)
	if len(c.InstanceTypes) == 0 {
		missing = append(missing, "instance_types")
	}
	if len(c.ContentTypes) == 0 {
		missing = append(missing, "content_types")
	}
	if len(c.ResponseTypes) == 0 {
		missing = append(missing, "response_types")
	}
	if len(missing) > 0 {
		return NewConfigurationError(missing...)
	}
	return nil
}

// ValidatePrepare checks the parameters the model-preparation stage needs.
// The generated serving script binds the first content type, so an emptied
// content_types list is rejected here rather than at render time.
func (c *Config) ValidatePrepare() error {
	var missing []string
	if strings.TrimSpace(c.ModelID) == "" {
		missing = append(missing, "model_id")
	}
	if strings.TrimSpace(c.ModelDir) == "" {
		missing = append(missing, "model_dir")
	}
	if len(c.ContentTypes) == 0 {
		missing = append(missing, "content_types")
	}
	if len(missing) > 0 {
		return NewConfigurationError(missing...)
	}
	return nil
}

// ValidatePack checks the parameters the packaging stage needs.
func (c *Config) ValidatePack() error {
	var missing []string
	if strings.TrimSpace(c.ModelDir) == "" {
		missing = append(missing, "model_dir")
	}
	if strings.TrimSpace(c.PayloadPath) == "" {
		missing = append(missing, "payload_path")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		missing = append(missing, "output_dir")
	}
	if len(missing) > 0 {
		return NewConfigurationError(missing...)
	}
	return nil
}
