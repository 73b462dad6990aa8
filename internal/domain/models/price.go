package models

import "time"

// Price table columns, in display order.
const (
	ColDate     = "Date"
	ColOpen     = "Open"
	ColHigh     = "High"
	ColLow      = "Low"
	ColClose    = "Close"
	ColAdjClose = "Adj Close"
	ColVolume   = "Volume"
)

// TableColumns is the column order of a reshaped price table.
var TableColumns = []string{ColDate, ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}

// ValueColumns lists the columns a series can be selected from.
var ValueColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}

// PriceBar is one daily OHLCV observation as returned by the market-data provider.
type PriceBar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// PriceRow is one row of a price table. Date is YYYY-MM-DD.
type PriceRow struct {
	Date     string  `json:"Date"`
	Open     float64 `json:"Open"`
	High     float64 `json:"High"`
	Low      float64 `json:"Low"`
	Close    float64 `json:"Close"`
	AdjClose float64 `json:"Adj Close"`
	Volume   int64   `json:"Volume"`
}

// Field returns the numeric value of a value column.
func (r PriceRow) Field(name string) (float64, bool) {
	switch name {
	case ColOpen:
		return r.Open, true
	case ColHigh:
		return r.High, true
	case ColLow:
		return r.Low, true
	case ColClose:
		return r.Close, true
	case ColAdjClose:
		return r.AdjClose, true
	case ColVolume:
		return float64(r.Volume), true
	}
	return 0, false
}

// PriceTable is the tabular view of a ticker's daily prices with Date as the first column.
type PriceTable struct {
	Ticker  string     `json:"ticker"`
	Start   string     `json:"start"`
	End     string     `json:"end"`
	Columns []string   `json:"columns"`
	Rows    []PriceRow `json:"rows"`
}

func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsValueColumn reports whether name is a selectable column.
func IsValueColumn(name string) bool {
	for _, c := range ValueColumns {
		if c == name {
			return true
		}
	}
	return false
}
