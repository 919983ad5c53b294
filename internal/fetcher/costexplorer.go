package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"azure-cost-alerts/internal/analysis"
)

const defaultCostMetric = "UnblendedCost"

// CostExplorerAPI is the subset of the Cost Explorer client used here.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// CostExplorerOptions parameterise the AWS fetcher.
type CostExplorerOptions struct {
	Metric string
}

// CostExplorer queries daily cost from AWS Cost Explorer.
type CostExplorer struct {
	api    CostExplorerAPI
	metric string
	logger zerolog.Logger
}

// NewCostExplorer builds a fetcher from a loaded AWS config.
func NewCostExplorer(cfg aws.Config, opts CostExplorerOptions, logger zerolog.Logger) *CostExplorer {
	return NewCostExplorerWithAPI(costexplorer.NewFromConfig(cfg), opts, logger)
}

// NewCostExplorerWithAPI builds a fetcher over any Cost Explorer implementation.
func NewCostExplorerWithAPI(api CostExplorerAPI, opts CostExplorerOptions, logger zerolog.Logger) *CostExplorer {
	metric := strings.TrimSpace(opts.Metric)
	if metric == "" {
		metric = defaultCostMetric
	}
	return &CostExplorer{
		api:    api,
		metric: metric,
		logger: logger.With().Str("component", "cost_explorer").Logger(),
	}
}

// FetchCosts retrieves daily costs for the account, following pagination.
func (c *CostExplorer) FetchCosts(ctx context.Context, q Query) ([]analysis.CostRecord, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(q.Window.Start.Format(analysis.DateLayout)),
			End:   aws.String(q.Window.End.Format(analysis.DateLayout)),
		},
		Granularity: types.GranularityDaily,
		Metrics:     []string{c.metric},
	}

	switch q.Type {
	case analysis.TypeGroup:
		input.GroupBy = []types.GroupDefinition{{
			Type: types.GroupDefinitionTypeDimension,
			Key:  aws.String(dimensionKey(q.GroupingKey)),
		}}
	case analysis.TypeTag:
		input.GroupBy = []types.GroupDefinition{{
			Type: types.GroupDefinitionTypeTag,
			Key:  aws.String(q.GroupingKey),
		}}
	}

	var records []analysis.CostRecord
	for {
		out, err := c.api.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, classifyAWSError(err)
		}

		for _, result := range out.ResultsByTime {
			if result.TimePeriod == nil {
				continue
			}
			date, err := time.Parse(analysis.DateLayout, aws.ToString(result.TimePeriod.Start))
			if err != nil {
				return nil, fmt.Errorf("%w: parse period start: %v", ErrUpstreamRequest, err)
			}

			if q.Type == analysis.TypeSubscription {
				cost, err := metricAmount(result.Total, c.metric)
				if err != nil {
					return nil, err
				}
				records = append(records, analysis.CostRecord{GroupKey: q.SubscriptionName, Date: date, Cost: cost})
				continue
			}

			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				key := group.Keys[0]
				if q.Type == analysis.TypeTag {
					key = tagValue(key)
					if key == "" {
						continue
					}
				}
				cost, err := metricAmount(group.Metrics, c.metric)
				if err != nil {
					return nil, err
				}
				records = append(records, analysis.CostRecord{GroupKey: key, Date: date, Cost: cost})
			}
		}

		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	c.logger.Debug().Str("account", q.SubscriptionName).Int("records", len(records)).Msg("cost explorer rows fetched")
	return records, nil
}

var dimensionAliases = map[string]string{
	"servicename":   "SERVICE",
	"metercategory": "USAGE_TYPE",
	"resourcetype":  "RESOURCE_TYPE",
	"location":      "REGION",
	"resourceid":    "RESOURCE_ID",
}

func dimensionKey(key string) string {
	if alias, ok := dimensionAliases[strings.ToLower(key)]; ok {
		return alias
	}
	return strings.ToUpper(key)
}

// Tag group keys come back as "<key>$<value>".
func tagValue(key string) string {
	if i := strings.Index(key, "$"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func metricAmount(metrics map[string]types.MetricValue, name string) (decimal.Decimal, error) {
	value, ok := metrics[name]
	if !ok || value.Amount == nil {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(aws.ToString(value.Amount))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: parse %s amount: %v", ErrUpstreamRequest, name, err)
	}
	return amount, nil
}

var awsAuthCodes = map[string]struct{}{
	"AccessDeniedException":       {},
	"UnrecognizedClientException": {},
	"ExpiredTokenException":       {},
	"InvalidClientTokenId":        {},
	"UnauthorizedOperation":       {},
}

func classifyAWSError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := awsAuthCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %s: %s", ErrUpstreamAuth, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return fmt.Errorf("%w: %s: %s", ErrUpstreamRequest, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("%w: %v", ErrUpstreamRequest, err)
}

var _ CostRecordSource = (*CostExplorer)(nil)
