package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Float is a float64 whose non-finite values are encoded as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Valid reports whether f is finite.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Floats converts a slice to Float.
func Floats(vs []float64) []Float {
	if vs == nil {
		return nil
	}
	out := make([]Float, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}
	return out
}

// SelectedSeries is a price table narrowed to {Date, Column}.
type SelectedSeries struct {
	Ticker string
	Column string
	Dates  []string
	Values []float64
}

func (s *SelectedSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// LastDate returns the date of the final observation.
func (s *SelectedSeries) LastDate() string {
	if s.Len() == 0 {
		return ""
	}
	return s.Dates[len(s.Dates)-1]
}

// MarshalJSON renders rows keyed by Date and the selected column name.
func (s SelectedSeries) MarshalJSON() ([]byte, error) {
	rows := make([]map[string]interface{}, len(s.Values))
	for i, v := range s.Values {
		rows[i] = map[string]interface{}{ColDate: s.Dates[i], s.Column: v}
	}
	return json.Marshal(struct {
		Ticker  string                   `json:"ticker"`
		Column  string                   `json:"column"`
		Columns []string                 `json:"columns"`
		Rows    []map[string]interface{} `json:"rows"`
	}{s.Ticker, s.Column, []string{ColDate, s.Column}, rows})
}

// StationarityResult is the outcome of an augmented Dickey-Fuller test.
type StationarityResult struct {
	Ticker         string             `json:"ticker"`
	Column         string             `json:"column"`
	Statistic      Float              `json:"statistic"`
	PValue         Float              `json:"p_value"`
	Lags           int                `json:"lags"`
	NObs           int                `json:"n_obs"`
	CriticalValues map[string]float64 `json:"critical_values"`
	Threshold      float64            `json:"threshold"`
	IsStationary   bool               `json:"is_stationary"`
}

// Decomposition holds trend, seasonal and residual components aligned to Dates.
// Trend and Residual are undefined (null) at the edges.
type Decomposition struct {
	Ticker   string   `json:"ticker"`
	Column   string   `json:"column"`
	Model    string   `json:"model"`
	Period   int      `json:"period"`
	Dates    []string `json:"dates"`
	Observed []Float  `json:"observed"`
	Trend    []Float  `json:"trend"`
	Seasonal []Float  `json:"seasonal"`
	Residual []Float  `json:"residual"`
}

// Model selection modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// ModelOrder is a SARIMA order (p,d,q)(P,D,Q)[m]. M == 0 means no seasonal part.
type ModelOrder struct {
	P  int `json:"p"`
	D  int `json:"d"`
	Q  int `json:"q"`
	SP int `json:"seasonal_p"`
	SD int `json:"seasonal_d"`
	SQ int `json:"seasonal_q"`
	M  int `json:"seasonal_period"`
}

// Seasonal reports whether the order has a seasonal part.
func (o ModelOrder) Seasonal() bool {
	return o.M > 1 && (o.SP+o.SD+o.SQ) > 0
}

func (o ModelOrder) String() string {
	if !o.Seasonal() {
		return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
	}
	return fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d)[%d]", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
}

// MirroredOrder returns (p,d,q)(p,d,q)[m], or a plain (p,d,q) when m is 0.
func MirroredOrder(p, d, q, m int) ModelOrder {
	o := ModelOrder{P: p, D: d, Q: q}
	if m > 1 {
		o.SP, o.SD, o.SQ, o.M = p, d, q, m
	}
	return o
}

// LjungBox is the residual autocorrelation test of a fitted model.
type LjungBox struct {
	Statistic Float `json:"statistic"`
	PValue    Float `json:"p_value"`
	Lags      int   `json:"lags"`
}

// FittedModel summarizes a fitted seasonal ARIMA model.
type FittedModel struct {
	Mode            string     `json:"mode"`
	Order           ModelOrder `json:"order"`
	Spec            string     `json:"spec"`
	ARCoeffs        []Float    `json:"ar"`
	MACoeffs        []Float    `json:"ma"`
	SARCoeffs       []Float    `json:"seasonal_ar"`
	SMACoeffs       []Float    `json:"seasonal_ma"`
	Intercept       Float      `json:"intercept"`
	Variance        Float      `json:"sigma2"`
	AIC             Float      `json:"aic"`
	AICc            Float      `json:"aicc"`
	BIC             Float      `json:"bic"`
	LogLik          Float      `json:"log_likelihood"`
	NObs            int        `json:"n_obs"`
	LjungBox        *LjungBox  `json:"ljung_box,omitempty"`
	ModelsEvaluated int        `json:"models_evaluated,omitempty"`
	FitMillis       int64      `json:"fit_ms"`
}

// ForecastRow is one forecast date with its point value and interval.
type ForecastRow struct {
	Date      string `json:"Date"`
	Predicted Float  `json:"Predicted"`
	Lower     Float  `json:"Lower"`
	Upper     Float  `json:"Upper"`
}

// Forecast is a fitted model with its forecast table.
type Forecast struct {
	Ticker     string        `json:"ticker"`
	Column     string        `json:"column"`
	Horizon    int           `json:"horizon"`
	Confidence float64       `json:"confidence"`
	Model      *FittedModel  `json:"model"`
	Rows       []ForecastRow `json:"rows"`
}

// Report is the full dashboard output of one forecasting run.
// Errors holds failures of non-fatal stages keyed by stage name.
type Report struct {
	RunID         string              `json:"run_id"`
	Ticker        string              `json:"ticker"`
	Column        string              `json:"column"`
	Start         string              `json:"start"`
	End           string              `json:"end"`
	Prices        *PriceTable         `json:"prices"`
	Series        *SelectedSeries     `json:"series"`
	Stationarity  *StationarityResult `json:"stationarity,omitempty"`
	Decomposition *Decomposition      `json:"decomposition,omitempty"`
	Forecast      *Forecast           `json:"forecast"`
	Errors        map[string]string   `json:"errors,omitempty"`
	GeneratedAt   time.Time           `json:"generated_at"`
	DurationMS    int64               `json:"duration_ms"`
}
