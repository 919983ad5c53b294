package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"azure-cost-alerts/internal/analysis"
)

// Static serves a fixed set of records, typically loaded from a CSV file.
type Static struct {
	records []analysis.CostRecord
}

// NewStatic wraps records already in memory.
func NewStatic(records []analysis.CostRecord) *Static {
	return &Static{records: records}
}

// LoadStatic reads a "group,date,cost" CSV file.
func LoadStatic(path string) (*Static, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer file.Close()

	records, err := ReadRecordsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewStatic(records), nil
}

// ReadRecordsCSV parses cost records; a header row naming group/date/cost is optional.
func ReadRecordsCSV(r io.Reader) ([]analysis.CostRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	var records []analysis.CostRecord
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(fields[0]), "group") {
			continue
		}

		date, err := time.Parse(analysis.DateLayout, strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cost, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parse cost: %w", line, err)
		}
		records = append(records, analysis.CostRecord{
			GroupKey: strings.TrimSpace(fields[0]),
			Date:     date,
			Cost:     cost,
		})
	}
	return records, nil
}

// FetchCosts returns every stored record; the window is applied by aggregation.
func (s *Static) FetchCosts(ctx context.Context, _ Query) ([]analysis.CostRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]analysis.CostRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

var _ CostRecordSource = (*Static)(nil)
