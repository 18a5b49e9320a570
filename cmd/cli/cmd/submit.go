package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/workflow"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit an inference recommendations job for the uploaded artifacts",
	Long: `Validate the job descriptor, verify the serving image, and submit a
recommendations job over the candidate instance types. The job executes
asynchronously inside the managed service; use "infersizer results" once it
completes.

Examples:
  infersizer submit --model-url s3://bkt/model-archives/model.tar.gz --payload-url s3://bkt/payload-archives/payload.tar.gz`,
	RunE: runSubmit,
}

var (
	submitModelURL   string
	submitPayloadURL string
)

func init() {
	submitCmd.Flags().StringVar(&submitModelURL, "model-url", "", "Address of the uploaded model archive (required)")
	submitCmd.Flags().StringVar(&submitPayloadURL, "payload-url", "", "Address of the uploaded payload archive (required)")
	_ = submitCmd.MarkFlagRequired("model-url")
	_ = submitCmd.MarkFlagRequired("payload-url")
	RootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateSubmit(); err != nil {
		return err
	}

	ctx := cmd.Context()
	p, cleanup, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	addrs := &workflow.Addresses{
		ModelArchiveURL: submitModelURL,
		PayloadURL:      submitPayloadURL,
	}
	sub, err := p.Submit(ctx, cfg, addrs)
	if err != nil {
		return err
	}

	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(sub)
	default:
		fmt.Printf("Job submitted: %s\n", sub.JobName)
		fmt.Printf("Model package: %s\n", sub.ModelPackageName)
		fmt.Printf("Fetch results: infersizer results %s\n", sub.JobName)
		return nil
	}
}
