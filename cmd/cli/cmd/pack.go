package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/archive"
	"github.com/infersizer/infersizer/internal/workflow"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Archive the model bundle and example payload into tarballs",
	RunE:  runPack,
}

func init() {
	RootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := &workflow.Pipeline{}
	archives, err := p.Pack(cfg)
	if err != nil {
		return err
	}

	modelMembers, err := archive.ListMembers(archives.ModelArchive)
	if err != nil {
		return err
	}
	payloadMembers, err := archive.ListMembers(archives.PayloadArchive)
	if err != nil {
		return err
	}

	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(map[string]any{
			"model_archive":   archives.ModelArchive,
			"payload_archive": archives.PayloadArchive,
			"model_members":   modelMembers,
			"payload_members": payloadMembers,
		})
	default:
		fmt.Printf("Model archive:   %s (%d members)\n", archives.ModelArchive, len(modelMembers))
		fmt.Printf("Payload archive: %s (%d members)\n", archives.PayloadArchive, len(payloadMembers))
		return nil
	}
}
