package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatMarshalsNonFiniteAsNull(t *testing.T) {
	b, err := json.Marshal([]Float{1.5, Float(math.NaN()), Float(math.Inf(1))})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,null,null]`, string(b))

	var back []Float
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Float(1.5), back[0])
	assert.False(t, back[1].Valid())
}

func TestSelectedSeriesJSON(t *testing.T) {
	s := &SelectedSeries{Ticker: "AAPL", Column: ColAdjClose, Dates: []string{"2024-01-02"}, Values: []float64{184.5}}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","column":"Adj Close","columns":["Date","Adj Close"],"rows":[{"Date":"2024-01-02","Adj Close":184.5}]}`, string(b))
	assert.Equal(t, "2024-01-02", s.LastDate())
}

func TestPriceRowField(t *testing.T) {
	r := PriceRow{Open: 1, High: 2, Low: 0.5, Close: 1.5, AdjClose: 1.4, Volume: 100}
	for col, want := range map[string]float64{ColOpen: 1, ColHigh: 2, ColLow: 0.5, ColClose: 1.5, ColAdjClose: 1.4, ColVolume: 100} {
		got, ok := r.Field(col)
		assert.True(t, ok, col)
		assert.Equal(t, want, got, col)
	}
	_, ok := r.Field(ColDate)
	assert.False(t, ok)
}

func TestModelOrder(t *testing.T) {
	assert.Equal(t, "SARIMA(2,2,2)(2,2,2)[12]", MirroredOrder(2, 2, 2, 12).String())
	assert.Equal(t, "ARIMA(1,1,0)", MirroredOrder(1, 1, 0, 0).String())
	assert.False(t, MirroredOrder(0, 0, 0, 12).Seasonal())
}

func TestPriceQueryRange(t *testing.T) {
	today := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	start, end, err := PriceQuery{Start: "2024-01-01"}.Range(today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), end)

	_, _, err = PriceQuery{Start: "2024-02-01", End: "2024-01-01"}.Range(today)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = PriceQuery{Start: "2024-02-01", End: "2024-02-01"}.Range(today)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestDashboardQueryParams(t *testing.T) {
	q := DashboardQuery{
		ForecastQuery: ForecastQuery{
			SeriesQuery: SeriesQuery{PriceQuery: PriceQuery{Ticker: "MSFT", Start: "2020-01-01", End: "2021-01-01"}, Column: ColClose},
			Mode:        ModeManual, P: 1, D: 1, Q: 0, SeasonalPeriod: 0, Horizon: 7,
		},
		DecomposePeriod: 30, DecomposeModel: "additive", RunID: "r",
	}
	p, err := q.Params(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "MSFT", p.Ticker)
	assert.Equal(t, ModelOrder{P: 1, D: 1}, p.Order)
	assert.Equal(t, 7, p.Horizon)
}

func TestForecastRunValidate(t *testing.T) {
	rep := &Report{
		RunID: "r1", Ticker: "AAPL", Column: ColClose, GeneratedAt: time.Now(),
		Series:       &SelectedSeries{Values: []float64{1, 2, 3}, Dates: []string{"a", "b", "c"}},
		Stationarity: &StationarityResult{PValue: 0.2},
		Forecast: &Forecast{Horizon: 1, Rows: []ForecastRow{{Date: "2024-01-01", Predicted: 1}},
			Model: &FittedModel{Mode: ModeAuto, Spec: "ARIMA(1,1,1)", AIC: 10}},
	}
	run := NewForecastRun(rep)
	require.NoError(t, run.Validate())
	assert.Equal(t, 3, run.Observations)
	assert.Equal(t, ModeAuto, run.Mode)
	assert.False(t, run.Stationary)

	run.Points = nil
	assert.ErrorIs(t, run.Validate(), ErrInvalidRun)
	var nilRun *ForecastRun
	assert.ErrorIs(t, nilRun.Validate(), ErrInvalidRun)
}
