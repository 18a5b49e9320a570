package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/database"
)

var historyCmd = &cobra.Command{
	Use:   "history [job-name]",
	Short: "List past submissions from the job-history repository",
	Long: `Without arguments, list recorded jobs newest first. With a job name,
show that job's stored recommendation rows. Requires database_url in the
config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum jobs to list")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("history requires database_url in %s", configPath)
	}

	ctx := cmd.Context()
	repo, err := database.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	if len(args) == 1 {
		results, err := repo.ListResults(ctx, args[0])
		if err != nil {
			return err
		}
		return renderHistoryResults(results)
	}

	jobs, err := repo.ListJobs(ctx, historyLimit)
	if err != nil {
		return err
	}
	return renderHistoryJobs(jobs)
}

func renderHistoryJobs(jobs []database.JobRecord) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(jobs)
	default:
		headers := []string{"JOB NAME", "MODEL", "STATUS", "INSTANCE TYPES", "SUBMITTED"}
		data := make([][]string, 0, len(jobs))
		for _, j := range jobs {
			data = append(data, []string{
				j.JobName,
				j.ModelID,
				j.Status,
				strings.Join(j.InstanceTypes, ","),
				j.SubmittedAt.Format("2006-01-02 15:04:05"),
			})
		}
		format.Table(headers, data)
		return nil
	}
}

func renderHistoryResults(results []database.ResultRecord) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(results)
	case format.FormatCSV:
		headers, data := historyResultCells(results)
		return format.CSV(os.Stdout, headers, data)
	default:
		headers, data := historyResultCells(results)
		format.Table(headers, data)
		return nil
	}
}

func historyResultCells(results []database.ResultRecord) ([]string, [][]string) {
	headers := []string{"INSTANCE TYPE", "COUNT", "COST/HOUR", "COST/INFERENCE", "COST/1M INFERENCES"}
	data := make([][]string, 0, len(results))
	for _, r := range results {
		data = append(data, []string{
			r.InstanceType,
			fmt.Sprintf("%d", r.InitialInstanceCount),
			format.USD(r.CostPerHour),
			format.USD(r.CostPerInference),
			format.USD(r.CostPerMillionInferences),
		})
	}
	return headers, data
}
