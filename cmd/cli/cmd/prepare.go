package cmd

import (
	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/internal/workflow"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Download the pretrained model and generate the serving code assets",
	Long: `Download the model and tokenizer into the configured model directory,
write the generated request-handler script and dependency manifest into its
code/ subdirectory, and author the example payload file.`,
	RunE: runPrepare,
}

var (
	prepareModel    string
	prepareModelDir string
)

func init() {
	prepareCmd.Flags().StringVar(&prepareModel, "model", "", "Model ID (overrides config)")
	prepareCmd.Flags().StringVar(&prepareModelDir, "model-dir", "", "Destination directory (overrides config)")
	RootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if prepareModel != "" {
		cfg.ModelID = prepareModel
	}
	if prepareModelDir != "" {
		cfg.ModelDir = prepareModelDir
	}

	ctx := cmd.Context()
	hubClient, err := newHubClient(ctx, cfg)
	if err != nil {
		return err
	}

	p := &workflow.Pipeline{Hub: hubClient}
	return p.Prepare(ctx, cfg)
}
