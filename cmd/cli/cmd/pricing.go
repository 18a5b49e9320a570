package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/infersizer/infersizer/cmd/cli/format"
	"github.com/infersizer/infersizer/internal/config"
	"github.com/infersizer/infersizer/internal/pricing"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Show on-demand rates and specs for the candidate instance types",
	Long: `Look up the current Linux on-demand hourly rate and hardware specs for
each candidate instance type, so recommender costs can be read against list
prices.`,
	RunE: runPricing,
}

var pricingInstances []string

func init() {
	pricingCmd.Flags().StringSliceVar(&pricingInstances, "instances", nil, "Instance types to look up (default: config instance_types)")
	RootCmd.AddCommand(pricingCmd)
}

func runPricing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	instances := pricingInstances
	if len(instances) == 0 {
		instances = cfg.InstanceTypes
	}
	if len(instances) == 0 {
		return config.NewConfigurationError("instance_types")
	}

	ctx := cmd.Context()
	catalog, err := pricing.New(ctx, cfg.Region)
	if err != nil {
		return err
	}

	entries, err := catalog.Lookup(ctx, instances)
	if err != nil {
		return err
	}

	switch getFormat() {
	case format.FormatJSON:
		return format.JSON(entries)
	case format.FormatCSV:
		headers, data := pricingCells(entries)
		return format.CSV(os.Stdout, headers, data)
	default:
		headers, data := pricingCells(entries)
		format.Table(headers, data)
		return nil
	}
}

func pricingCells(entries []pricing.Entry) ([]string, [][]string) {
	headers := []string{"INSTANCE TYPE", "EC2 TYPE", "VCPUS", "MEMORY (GIB)", "ON-DEMAND/HOUR"}
	data := make([][]string, 0, len(entries))
	for _, e := range entries {
		data = append(data, []string{
			e.InstanceType,
			e.EC2Type,
			strconv.Itoa(int(e.VCPUs)),
			format.F64(e.MemoryGiB, 1),
			format.USD(e.OnDemandHourlyUSD),
		})
	}
	return headers, data
}
