package models

import (
	"errors"
	"math"
	"time"
)

// Pipeline stages, in execution order, plus the two terminal stages.
const (
	StageFetch        = "fetch"
	StageReshape      = "reshape"
	StageSelect       = "select"
	StageStationarity = "stationarity"
	StageDecompose    = "decompose"
	StageFit          = "fit"
	StageForecast     = "forecast"
	StageRecord       = "record"
	StageDone         = "done"
	StageFailed       = "failed"
)

// Stage statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent announces a stage transition of a run.
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Terminal reports whether no further events follow for the run.
func (e ProgressEvent) Terminal() bool {
	return e.Stage == StageDone || e.Stage == StageFailed
}

// ForecastRun is the audit record of a completed forecasting run.
type ForecastRun struct {
	RunID        string        `json:"run_id"`
	Ticker       string        `json:"ticker"`
	Column       string        `json:"column"`
	Mode         string        `json:"mode"`
	Order        ModelOrder    `json:"order"`
	Spec         string        `json:"spec"`
	Start        string        `json:"start"`
	End          string        `json:"end"`
	Observations int           `json:"observations"`
	Horizon      int           `json:"horizon"`
	AIC          Float         `json:"aic"`
	Stationary   bool          `json:"stationary"`
	PValue       Float         `json:"p_value"`
	DurationMS   int64         `json:"duration_ms"`
	CreatedAt    time.Time     `json:"created_at"`
	Points       []ForecastRow `json:"points,omitempty"`
}

var ErrInvalidRun = errors.New("invalid forecast run")

// Validate checks the fields every store relies on.
func (r *ForecastRun) Validate() error {
	switch {
	case r == nil:
		return ErrInvalidRun
	case r.RunID == "":
		return errors.Join(ErrInvalidRun, errors.New("run_id is required"))
	case r.Ticker == "":
		return errors.Join(ErrInvalidRun, errors.New("ticker is required"))
	case r.CreatedAt.IsZero():
		return errors.Join(ErrInvalidRun, errors.New("created_at is required"))
	case len(r.Points) != r.Horizon:
		return errors.Join(ErrInvalidRun, errors.New("points do not match horizon"))
	}
	return nil
}

// NewForecastRun builds the audit record of a report.
func NewForecastRun(rep *Report) *ForecastRun {
	run := &ForecastRun{
		RunID:      rep.RunID,
		Ticker:     rep.Ticker,
		Column:     rep.Column,
		Start:      rep.Start,
		End:        rep.End,
		DurationMS: rep.DurationMS,
		CreatedAt:  rep.GeneratedAt.UTC(),
	}
	run.Observations = rep.Series.Len()
	if st := rep.Stationarity; st != nil {
		run.Stationary = st.IsStationary
		run.PValue = st.PValue
	} else {
		run.PValue = Float(math.NaN())
	}
	if fc := rep.Forecast; fc != nil {
		run.Horizon = fc.Horizon
		run.Points = fc.Rows
		if fc.Model != nil {
			run.Mode = fc.Model.Mode
			run.Order = fc.Model.Order
			run.Spec = fc.Model.Spec
			run.AIC = fc.Model.AIC
		}
	}
	return run
}

// EventForecastCompleted is the type of the broker event emitted for a recorded run.
const EventForecastCompleted = "forecast.completed"

// ForecastEvent is the broker envelope of a recorded run.
type ForecastEvent struct {
	Type string       `json:"type"`
	Run  *ForecastRun `json:"run"`
}
