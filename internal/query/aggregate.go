package query

import (
	"context"
	"fmt"

	"dataportal/domain/table"
	"dataportal/internal/errors"
	"dataportal/internal/projector"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// ColumnSummary aggregates the numeric values of one column
type ColumnSummary struct {
	Table      string          `json:"table"`
	Column     string          `json:"column"`
	Partition  string          `json:"partition,omitempty"`
	Count      int             `json:"count"`
	NonNumeric int             `json:"non_numeric"`
	Total      decimal.Decimal `json:"total"`
	Mean       float64         `json:"mean"`
	Median     float64         `json:"median"`
	Min        float64         `json:"min"`
	Max        float64         `json:"max"`
}

// Share is one label's part of a composition
type Share struct {
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
	Percent float64         `json:"percent"`
}

func (s *Service) columnRows(ctx context.Context, name string, columns []string, partition *string) ([]table.Row, error) {
	lt, err := s.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if table.IsSystemColumn(c) || !lt.HasColumn(c) {
			return nil, errors.NotFound(fmt.Sprintf("column %s of %s", c, name))
		}
	}
	f := Filter{Partition: partition}
	return s.ListRows(ctx, name, f)
}

// SummarizeColumn totals a column exactly and describes its distribution.
// Blank cells are ignored; cells that do not parse are counted as non-numeric.
func (s *Service) SummarizeColumn(ctx context.Context, name, column string, partition *string) (*ColumnSummary, error) {
	rows, err := s.columnRows(ctx, name, []string{column}, partition)
	if err != nil {
		return nil, err
	}

	sum := &ColumnSummary{Table: name, Column: column, Total: decimal.Zero}
	if partition != nil {
		sum.Partition = *partition
	}
	var data stats.Float64Data
	for _, r := range rows {
		v, ok := r.Values[column]
		if !ok {
			continue
		}
		d, ok := projector.ParseAmount(v)
		if !ok {
			sum.NonNumeric++
			continue
		}
		sum.Count++
		sum.Total = sum.Total.Add(d)
		data = append(data, d.InexactFloat64())
	}
	if len(data) == 0 {
		return sum, nil
	}

	if sum.Mean, err = data.Mean(); err != nil {
		return nil, errors.Wrap(err, "failed to compute mean")
	}
	if sum.Median, err = data.Median(); err != nil {
		return nil, errors.Wrap(err, "failed to compute median")
	}
	if sum.Min, err = data.Min(); err != nil {
		return nil, errors.Wrap(err, "failed to compute min")
	}
	if sum.Max, err = data.Max(); err != nil {
		return nil, errors.Wrap(err, "failed to compute max")
	}
	return sum, nil
}

// Composition sums valueColumn per distinct labelColumn value, in first-seen
// order, and expresses each sum as a percentage of the grand total.
// Rows without a parsable value are ignored; a blank label is reported as "-".
func (s *Service) Composition(ctx context.Context, name, labelColumn, valueColumn string, partition *string) ([]Share, error) {
	rows, err := s.columnRows(ctx, name, []string{labelColumn, valueColumn}, partition)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	shares := []Share{}
	for _, r := range rows {
		d, ok := projector.ParseAmount(r.Values[valueColumn])
		if !ok {
			continue
		}
		label := r.Values[labelColumn]
		if label == "" {
			label = "-"
		}
		i, seen := index[label]
		if !seen {
			i = len(shares)
			index[label] = i
			shares = append(shares, Share{Label: label, Value: decimal.Zero})
		}
		shares[i].Value = shares[i].Value.Add(d)
	}
	if len(shares) == 0 {
		return shares, nil
	}

	pct := make([]float64, len(shares))
	for i, sh := range shares {
		pct[i] = sh.Value.InexactFloat64()
	}
	if total := floats.Sum(pct); total != 0 {
		floats.Scale(100/total, pct)
	} else {
		floats.Scale(0, pct)
	}
	for i := range shares {
		shares[i].Percent = pct[i]
	}
	return shares, nil
}
