package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"azure-cost-alerts/internal/analysis"
)

const (
	defaultManagementURL = "https://management.azure.com"
	defaultCostAPI       = "2021-10-01"
	usageDateLayout      = "20060102"
	maxResultPages       = 100
)

// CostManagementOptions parameterise the Azure Cost Management fetcher.
type CostManagementOptions struct {
	ManagementURL string
	APIVersion    string
	// MaxPages bounds nextLink traversal; zero means 100.
	MaxPages int
}

// CostManagement queries daily actual cost from the Azure Cost Management API.
type CostManagement struct {
	opts    CostManagementOptions
	client  *Client
	logger  zerolog.Logger
	baseURL string
}

// NewCostManagement constructs an Azure cost fetcher over the shared client.
func NewCostManagement(opts CostManagementOptions, client *Client, logger zerolog.Logger) *CostManagement {
	baseURL := strings.TrimRight(opts.ManagementURL, "/")
	if baseURL == "" {
		baseURL = defaultManagementURL
	}
	if opts.APIVersion == "" {
		opts.APIVersion = defaultCostAPI
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = maxResultPages
	}

	return &CostManagement{
		opts:    opts,
		client:  client,
		logger:  logger.With().Str("component", "cost_management").Logger(),
		baseURL: baseURL,
	}
}

// FetchCosts retrieves every page of daily cost rows for the subscription.
func (c *CostManagement) FetchCosts(ctx context.Context, q Query) ([]analysis.CostRecord, error) {
	if strings.TrimSpace(q.SubscriptionID) == "" {
		return nil, fmt.Errorf("%w: subscription id required", ErrUpstreamRequest)
	}

	body, err := json.Marshal(buildCostQuery(q))
	if err != nil {
		return nil, fmt.Errorf("marshal cost query: %w", err)
	}

	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.CostManagement/query?api-version=%s",
		c.baseURL, q.SubscriptionID, c.opts.APIVersion)

	var records []analysis.CostRecord
	for page := 0; url != "" && page < c.opts.MaxPages; page++ {
		payload, err := c.client.Do(ctx, http.MethodPost, url, q.Token, body)
		if err != nil {
			return nil, err
		}

		var res costQueryResponse
		decoder := json.NewDecoder(bytes.NewReader(payload))
		decoder.UseNumber()
		if err := decoder.Decode(&res); err != nil {
			return nil, fmt.Errorf("%w: decode cost response: %v", ErrUpstreamRequest, err)
		}
		if res.Properties == nil {
			break
		}

		parsed, err := parseCostRows(res.Properties.Columns, res.Properties.Rows, q)
		if err != nil {
			return nil, err
		}
		records = append(records, parsed...)
		url = res.Properties.NextLink
	}
	if url != "" {
		c.logger.Warn().Str("subscription", q.SubscriptionName).Int("pages", c.opts.MaxPages).Msg("cost result still paginated at page limit")
		return nil, fmt.Errorf("%w: cost result exceeds %d pages", ErrUpstreamRequest, c.opts.MaxPages)
	}

	if len(records) == 0 {
		c.logger.Info().Str("subscription", q.SubscriptionName).Msg("no cost found")
	} else {
		c.logger.Debug().Str("subscription", q.SubscriptionName).Int("records", len(records)).Msg("cost rows fetched")
	}
	return records, nil
}

func buildCostQuery(q Query) costQueryRequest {
	req := costQueryRequest{
		Type:      "ActualCost",
		Timeframe: "Custom",
		TimePeriod: timePeriod{
			From: q.Window.Start.Format(analysis.DateLayout),
			To:   q.Window.LastFetchDay().Format(analysis.DateLayout),
		},
		Dataset: dataset{
			Granularity: "Daily",
			Aggregation: map[string]aggregation{
				"totalCost": {Name: "Cost", Function: "Sum"},
			},
			Grouping: []grouping{},
		},
	}

	switch q.Type {
	case analysis.TypeGroup:
		req.Dataset.Grouping = append(req.Dataset.Grouping, grouping{Type: "Dimension", Name: q.GroupingKey})
	case analysis.TypeTag:
		req.Dataset.Grouping = append(req.Dataset.Grouping, grouping{Type: "TagKey", Name: q.GroupingKey})
	}
	return req
}

type columnIndex struct {
	cost  int
	date  int
	group int
}

func locateColumns(columns []column, q Query) columnIndex {
	idx := columnIndex{cost: 0, date: 1, group: -1}
	switch q.Type {
	case analysis.TypeGroup:
		idx.group = 2
	case analysis.TypeTag:
		idx.group = 3
	}

	for i, col := range columns {
		switch {
		case strings.EqualFold(col.Name, "Cost"), strings.EqualFold(col.Name, "PreTaxCost"):
			idx.cost = i
		case strings.EqualFold(col.Name, "UsageDate"):
			idx.date = i
		case q.Type == analysis.TypeTag && strings.EqualFold(col.Name, "TagValue"):
			idx.group = i
		case q.Type == analysis.TypeGroup && strings.EqualFold(col.Name, q.GroupingKey):
			idx.group = i
		}
	}
	return idx
}

func parseCostRows(columns []column, rows [][]any, q Query) ([]analysis.CostRecord, error) {
	idx := locateColumns(columns, q)
	records := make([]analysis.CostRecord, 0, len(rows))

	for n, row := range rows {
		cost, err := cellDecimal(row, idx.cost)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d cost: %v", ErrUpstreamRequest, n, err)
		}
		date, err := cellDate(row, idx.date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d date: %v", ErrUpstreamRequest, n, err)
		}

		group := q.SubscriptionName
		if idx.group >= 0 {
			group = cellString(row, idx.group)
			if q.Type == analysis.TypeTag && group == "" {
				continue
			}
		}

		records = append(records, analysis.CostRecord{GroupKey: group, Date: date, Cost: cost})
	}
	return records, nil
}

func cellDecimal(row []any, i int) (decimal.Decimal, error) {
	if i < 0 || i >= len(row) {
		return decimal.Decimal{}, fmt.Errorf("missing column %d", i)
	}
	switch v := row[i].(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected value %v", v)
	}
}

func cellDate(row []any, i int) (time.Time, error) {
	if i < 0 || i >= len(row) {
		return time.Time{}, fmt.Errorf("missing column %d", i)
	}
	var raw string
	switch v := row[i].(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = v
	default:
		return time.Time{}, fmt.Errorf("unexpected value %v", v)
	}

	for _, layout := range []string{usageDateLayout, "2006-01-02T15:04:05", time.RFC3339, analysis.DateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return analysis.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

func cellString(row []any, i int) string {
	if i < 0 || i >= len(row) || row[i] == nil {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprint(row[i])
}

type costQueryRequest struct {
	Type       string     `json:"type"`
	Timeframe  string     `json:"timeframe"`
	TimePeriod timePeriod `json:"timePeriod"`
	Dataset    dataset    `json:"dataset"`
}

type timePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type dataset struct {
	Granularity string                 `json:"granularity"`
	Aggregation map[string]aggregation `json:"aggregation"`
	Grouping    []grouping             `json:"grouping"`
}

type aggregation struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type grouping struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type costQueryResponse struct {
	Properties *struct {
		NextLink string   `json:"nextLink"`
		Columns  []column `json:"columns"`
		Rows     [][]any  `json:"rows"`
	} `json:"properties"`
}

var _ CostRecordSource = (*CostManagement)(nil)
