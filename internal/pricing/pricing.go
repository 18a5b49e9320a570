// Package pricing looks up on-demand rates and hardware specs for the
// candidate instance types so the recommendation table can be read against
// list prices.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"golang.org/x/sync/errgroup"
)

const lookupConcurrency = 4

type pricingAPI interface {
	GetProducts(ctx context.Context, params *awspricing.GetProductsInput, optFns ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error)
}

type ec2API interface {
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
}

// Catalog combines the Pricing and EC2 APIs.
type Catalog struct {
	pricing pricingAPI
	ec2     ec2API
	region  string
}

// New creates a Catalog. The Pricing API is only served out of us-east-1;
// region applies to the rates and the EC2 metadata lookups.
func New(ctx context.Context, region string) (*Catalog, error) {
	pricingCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	ec2Cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClients(awspricing.NewFromConfig(pricingCfg), ec2.NewFromConfig(ec2Cfg), region), nil
}

// NewWithClients wires explicit service clients. Used by tests.
func NewWithClients(p pricingAPI, e ec2API, region string) *Catalog {
	return &Catalog{pricing: p, ec2: e, region: region}
}

// Entry is one instance type's list price and hardware specs.
type Entry struct {
	InstanceType      string  `json:"instance_type"`
	EC2Type           string  `json:"ec2_type"`
	VCPUs             int32   `json:"vcpus"`
	MemoryGiB         float64 `json:"memory_gib"`
	OnDemandHourlyUSD float64 `json:"on_demand_hourly_usd"`
}

// EC2TypeFor maps a serving instance type label (ml.c7g.4xlarge) to its
// underlying EC2 type (c7g.4xlarge).
func EC2TypeFor(instanceType string) string {
	return strings.TrimPrefix(instanceType, "ml.")
}

// Lookup resolves pricing and specs for each candidate instance type, up
// to four in flight at a time. Results come back sorted by hourly rate.
func (c *Catalog) Lookup(ctx context.Context, instanceTypes []string) ([]Entry, error) {
	specs, err := c.describeSpecs(ctx, instanceTypes)
	if err != nil {
		return nil, err
	}

	// Each goroutine writes its own index; no shared state.
	entries := make([]Entry, len(instanceTypes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, it := range instanceTypes {
		i, it := i, it
		g.Go(func() error {
			ec2Type := EC2TypeFor(it)
			rate, err := c.fetchOnDemandRate(gctx, ec2Type)
			if err != nil {
				return fmt.Errorf("%s: %w", it, err)
			}
			e := Entry{
				InstanceType:      it,
				EC2Type:           ec2Type,
				OnDemandHourlyUSD: rate,
			}
			if s, ok := specs[ec2Type]; ok {
				e.VCPUs = s.VCPUs
				e.MemoryGiB = s.MemoryGiB
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].OnDemandHourlyUSD < entries[j].OnDemandHourlyUSD
	})
	return entries, nil
}

type spec struct {
	VCPUs     int32
	MemoryGiB float64
}

func (c *Catalog) describeSpecs(ctx context.Context, instanceTypes []string) (map[string]spec, error) {
	types := make([]ec2types.InstanceType, 0, len(instanceTypes))
	for _, it := range instanceTypes {
		types = append(types, ec2types.InstanceType(EC2TypeFor(it)))
	}

	out, err := c.ec2.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
		InstanceTypes: types,
	})
	if err != nil {
		return nil, fmt.Errorf("describe instance types: %w", err)
	}

	specs := make(map[string]spec, len(out.InstanceTypes))
	for _, info := range out.InstanceTypes {
		s := spec{}
		if info.VCpuInfo != nil {
			s.VCPUs = aws.ToInt32(info.VCpuInfo.DefaultVCpus)
		}
		if info.MemoryInfo != nil {
			s.MemoryGiB = float64(aws.ToInt64(info.MemoryInfo.SizeInMiB)) / 1024
		}
		specs[string(info.InstanceType)] = s
	}
	return specs, nil
}

// fetchOnDemandRate queries the Pricing API for a single EC2 instance type
// and returns the Linux on-demand hourly rate.
func (c *Catalog) fetchOnDemandRate(ctx context.Context, ec2Type string) (float64, error) {
	input := &awspricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters: []pricingtypes.Filter{
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("instanceType"), Value: aws.String(ec2Type)},
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("operatingSystem"), Value: aws.String("Linux")},
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("tenancy"), Value: aws.String("Shared")},
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("preInstalledSw"), Value: aws.String("NA")},
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("capacitystatus"), Value: aws.String("Used")},
			{Type: pricingtypes.FilterTypeTermMatch, Field: aws.String("regionCode"), Value: aws.String(c.region)},
		},
		MaxResults: aws.Int32(10),
	}

	resp, err := c.pricing.GetProducts(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("GetProducts: %w", err)
	}
	if len(resp.PriceList) == 0 {
		return 0, fmt.Errorf("no pricing found in %s", c.region)
	}

	var product priceDoc
	if err := json.Unmarshal([]byte(resp.PriceList[0]), &product); err != nil {
		return 0, fmt.Errorf("parse price list: %w", err)
	}
	return extractOnDemand(product.Terms.OnDemand)
}

// priceDoc is the relevant slice of a Pricing API response entry.
type priceDoc struct {
	Terms struct {
		OnDemand map[string]termEntry `json:"OnDemand"`
	} `json:"terms"`
}

type termEntry struct {
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

func extractOnDemand(terms map[string]termEntry) (float64, error) {
	for _, term := range terms {
		for _, pd := range term.PriceDimensions {
			if pd.Unit == "Hrs" {
				usd, ok := pd.PricePerUnit["USD"]
				if !ok {
					continue
				}
				return strconv.ParseFloat(usd, 64)
			}
		}
	}
	return 0, fmt.Errorf("no hourly on-demand price found")
}
