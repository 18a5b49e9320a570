package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/storage"
	"github.com/infersizer/infersizer/internal/workflow"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push both archives to object storage and print their addresses",
	RunE:  runUpload,
}

var (
	uploadModelArchive   string
	uploadPayloadArchive string
)

func init() {
	uploadCmd.Flags().StringVar(&uploadModelArchive, "model-archive", "", "Model archive path (default <output_dir>/model.tar.gz)")
	uploadCmd.Flags().StringVar(&uploadPayloadArchive, "payload-archive", "", "Payload archive path (default <output_dir>/payload.tar.gz)")
	RootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	archives := &workflow.Archives{
		ModelArchive:   uploadModelArchive,
		PayloadArchive: uploadPayloadArchive,
	}
	if archives.ModelArchive == "" {
		archives.ModelArchive = filepath.Join(cfg.OutputDir, "model.tar.gz")
	}
	if archives.PayloadArchive == "" {
		archives.PayloadArchive = filepath.Join(cfg.OutputDir, "payload.tar.gz")
	}

	ctx := cmd.Context()
	uploader, err := storage.New(ctx, cfg.Region, cfg.Bucket)
	if err != nil {
		return err
	}

	p := &workflow.Pipeline{Uploader: uploader}
	addrs, err := p.Upload(ctx, cfg, archives)
	if err != nil {
		return err
	}

	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(map[string]string{
			"model_archive_url": addrs.ModelArchiveURL,
			"payload_url":       addrs.PayloadURL,
		})
	default:
		fmt.Printf("Model archive:   %s\n", addrs.ModelArchiveURL)
		fmt.Printf("Payload archive: %s\n", addrs.PayloadURL)
		return nil
	}
}
