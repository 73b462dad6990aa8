package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/pkg/util"
)

// ErrUnknownColumn is returned when a column is not one of models.ValueColumns.
var ErrUnknownColumn = errors.New("unknown price column")

// ErrEmptyTable is returned when selecting from a table without rows.
var ErrEmptyTable = errors.New("price table is empty")

// BuildTable promotes the bar date to a Date column and lays the bars out as
// positional rows, one per bar, in the order given.
func BuildTable(ticker string, start, end time.Time, bars []models.PriceBar) *models.PriceTable {
	rows := make([]models.PriceRow, len(bars))
	for i, b := range bars {
		rows[i] = models.PriceRow{
			Date:     util.FormatDate(b.Date),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   b.Volume,
		}
	}
	cols := make([]string, len(models.TableColumns))
	copy(cols, models.TableColumns)
	return &models.PriceTable{
		Ticker:  ticker,
		Start:   util.FormatDate(start),
		End:     util.FormatDate(end),
		Columns: cols,
		Rows:    rows,
	}
}

// SelectColumn narrows a table to {Date, column}.
func SelectColumn(t *models.PriceTable, column string) (*models.SelectedSeries, error) {
	if !models.IsValueColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	s := &models.SelectedSeries{
		Ticker: t.Ticker,
		Column: column,
		Dates:  make([]string, 0, len(t.Rows)),
		Values: make([]float64, 0, len(t.Rows)),
	}
	for _, r := range t.Rows {
		v, _ := r.Field(column)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.Dates = append(s.Dates, r.Date)
		s.Values = append(s.Values, v)
	}
	if len(s.Values) == 0 {
		return nil, ErrEmptyTable
	}
	return s, nil
}

// Timestamps parses the series dates; unparsable dates become the zero time.
func Timestamps(s *models.SelectedSeries) []time.Time {
	out := make([]time.Time, len(s.Dates))
	for i, d := range s.Dates {
		out[i], _ = util.ParseTime(d)
	}
	return out
}
