package models

import (
	"errors"
	"time"

	"StockForecaster/pkg/util"
)

// Requests for the forecasting HTTP endpoints. Fields with a `default` tag are
// filled before binding, so an explicit zero in the query is kept.

var ErrInvalidRange = errors.New("end date must be after start date")

type PriceQuery struct {
	Ticker string `query:"ticker" json:"ticker" default:"AAPL" validate:"required,ticker"`
	Start  string `query:"start" json:"start" default:"2014-01-01" validate:"required,datetime=2006-01-02"`
	End    string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
}

// Range resolves the query dates. An empty end means today.
func (q PriceQuery) Range(today time.Time) (time.Time, time.Time, error) {
	start, ok := util.ParseTime(q.Start)
	if !ok {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	end := util.Day(today)
	if q.End != "" {
		if end, ok = util.ParseTime(q.End); !ok {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
	}
	start, end = util.Day(start), util.Day(end)
	if !end.After(start) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return start, end, nil
}

type SeriesQuery struct {
	PriceQuery
	Column string `query:"column" json:"column" default:"Close" validate:"oneof=Open High Low Close 'Adj Close' Volume"`
}

type DecompositionQuery struct {
	SeriesQuery
	Period int    `query:"decompose_period" json:"decompose_period" default:"30" validate:"gte=2,lte=366"`
	Model  string `query:"decompose_model" json:"decompose_model" default:"additive" validate:"oneof=additive multiplicative"`
}

type ForecastQuery struct {
	SeriesQuery
	Mode           string `query:"mode" json:"mode" default:"manual" validate:"oneof=manual auto"`
	P              int    `query:"p" json:"p" default:"2" validate:"gte=0,lte=5"`
	D              int    `query:"d" json:"d" default:"2" validate:"gte=0,lte=2"`
	Q              int    `query:"q" json:"q" default:"2" validate:"gte=0,lte=5"`
	SeasonalPeriod int    `query:"seasonal_period" json:"seasonal_period" default:"12" validate:"gte=0,lte=366"`
	Horizon        int    `query:"horizon" json:"horizon" default:"30" validate:"gte=1,lte=365"`
}

// Order returns the manual model order of the query.
func (q ForecastQuery) Order() ModelOrder {
	return MirroredOrder(q.P, q.D, q.Q, q.SeasonalPeriod)
}

type DashboardQuery struct {
	ForecastQuery
	DecomposePeriod int    `query:"decompose_period" json:"decompose_period" default:"30" validate:"gte=2,lte=366"`
	DecomposeModel  string `query:"decompose_model" json:"decompose_model" default:"additive" validate:"oneof=additive multiplicative"`
	RunID           string `query:"run_id" json:"run_id" validate:"omitempty,uuid"`
}

type HistoryQuery struct {
	Ticker string `query:"ticker" json:"ticker" validate:"omitempty,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

// SeriesParams identifies a selected series over a date range.
type SeriesParams struct {
	Ticker string
	Start  time.Time
	End    time.Time
	Column string
}

// ForecastParams is the resolved input of a forecasting run.
type ForecastParams struct {
	SeriesParams
	RunID           string
	Mode            string
	Order           ModelOrder
	Horizon         int
	DecomposePeriod int
	DecomposeModel  string
}

// Params resolves a series query against today's date.
func (q SeriesQuery) Params(today time.Time) (SeriesParams, error) {
	start, end, err := q.Range(today)
	if err != nil {
		return SeriesParams{}, err
	}
	return SeriesParams{Ticker: q.Ticker, Start: start, End: end, Column: q.Column}, nil
}

// Params resolves a dashboard query against today's date.
func (q DashboardQuery) Params(today time.Time) (ForecastParams, error) {
	sp, err := q.SeriesQuery.Params(today)
	if err != nil {
		return ForecastParams{}, err
	}
	return ForecastParams{
		SeriesParams:    sp,
		RunID:           q.RunID,
		Mode:            q.Mode,
		Order:           q.Order(),
		Horizon:         q.Horizon,
		DecomposePeriod: q.DecomposePeriod,
		DecomposeModel:  q.DecomposeModel,
	}, nil
}
