package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/recommender"
	"github.com/infersizer/infersizer/internal/workflow"
)

var resultsCmd = &cobra.Command{
	Use:   "results <job-name>",
	Short: "Fetch a completed job's recommendations as a cost-comparison table",
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

var resultsInstance string

func init() {
	resultsCmd.Flags().StringVar(&resultsInstance, "instance", "", "Show only the row for this instance type")
	RootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jobName := args[0]

	ctx := cmd.Context()
	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return err
	}
	repo, err := newRepo(ctx, cfg)
	if err != nil {
		return err
	}

	p := &workflow.Pipeline{Invoker: invoker}
	if repo != nil {
		p.Repo = repo
		defer repo.Close()
	}

	rows, err := p.Results(ctx, jobName)
	if err != nil {
		return err
	}

	if resultsInstance != "" {
		row, err := recommender.SelectRow(rows, jobName, resultsInstance)
		if err != nil {
			return err
		}
		rows = []recommender.Row{row}
	}
	return renderRows(rows)
}

func renderRows(rows []recommender.Row) error {
	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(rows)
	case format.FormatCSV:
		headers, data := rowsToCells(rows)
		return format.CSV(os.Stdout, headers, data)
	default:
		headers, data := rowsToCells(rows)
		format.Table(headers, data)
		return nil
	}
}

func rowsToCells(rows []recommender.Row) ([]string, [][]string) {
	headers := []string{
		"INSTANCE TYPE", "COUNT", "COST/HOUR", "COST/INFERENCE",
		"COST/1M INFERENCES", "MAX INVOCATIONS/MIN", "LATENCY (US)",
	}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.InstanceType,
			strconv.Itoa(int(r.InitialInstanceCount)),
			format.USD(r.CostPerHour),
			format.USD(r.CostPerInference),
			format.USD(r.CostPerMillionInferences),
			strconv.Itoa(int(r.MaxInvocationsPerMinute)),
			strconv.Itoa(int(r.ModelLatencyMicros)),
		})
	}
	return headers, data
}
