package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole workflow: prepare, pack, upload, submit, wait, results",
	Long: `Execute every stage in sequence and render the cost-comparison table
once the recommendations job completes. Configuration is validated before
anything is downloaded or uploaded.`,
	RunE: runAll,
}

func init() {
	RootCmd.AddCommand(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, cleanup, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := p.Run(ctx, cfg)
	if err != nil {
		return err
	}
	return renderRows(rows)
}
