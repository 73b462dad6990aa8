package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL","gmtoffset":-18000},
"timestamp":[1704378600,1704205800,1704292200,1704465000],
"indicators":{"quote":[{
 "open":[182.1,187.2,184.2,null],
 "high":[183.1,188.4,185.9,null],
 "low":[180.9,183.9,183.4,null],
 "close":[181.9,185.6,184.3,null],
 "volume":[62303300,82488700,58414500,null]}],
 "adjclose":[{"adjclose":[181.2,184.9,183.6,null]}]}}],"error":null}}`

func TestFetchDaily(t *testing.T) {
	var gotPath, gotUA string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotUA, gotQuery = r.URL.Path, r.Header.Get("User-Agent"), r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	bars, err := c.FetchDaily(context.Background(), "AAPL", start, end)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "Mozilla/5.0", gotUA)
	assert.Equal(t, []string{"1d"}, gotQuery["interval"])
	assert.Equal(t, []string{"1704067200"}, gotQuery["period1"])
	assert.Equal(t, []string{"1704499200"}, gotQuery["period2"])

	// null bar dropped, sorted ascending
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-03", bars[1].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-04", bars[2].Date.Format("2006-01-02"))
	assert.Equal(t, 185.6, bars[0].Close)
	assert.Equal(t, 184.9, bars[0].AdjClose)
	assert.Equal(t, int64(82488700), bars[0].Volume)
}

func TestFetchDaily_PartialBarDropped(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{"gmtoffset":-18000},
"timestamp":[1704205800,1704292200,1704378600],
"indicators":{"quote":[{
 "open":[187.2,184.2,182.1],
 "high":[188.4,185.9,183.1],
 "low":[183.9,183.4,180.9],
 "close":[185.6,null,181.9],
 "volume":[82488700,58414500,null]}],
 "adjclose":[{"adjclose":[184.9,null,null]}]}}],"error":null}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	bars, err := New(srv.URL, "").FetchDaily(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-01-04", bars[1].Date.Format("2006-01-02"))
	for _, b := range bars {
		assert.NotZero(t, b.Close)
		assert.NotZero(t, b.AdjClose)
	}
	// missing adjusted close and volume fall back to close and zero
	assert.Equal(t, 181.9, bars[1].AdjClose)
	assert.Equal(t, int64(0), bars[1].Volume)
}

func TestFetchDaily_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "ua").FetchDaily(context.Background(), "AAPL", time.Now().AddDate(0, 0, -3), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchDaily_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "ua").FetchDaily(context.Background(), "ZZZZ", time.Now().AddDate(-1, 0, 0), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchDaily_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "ua").FetchDaily(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), time.Now())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Request", apiErr.Code)
}

func TestFetchDaily_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "ua").FetchDaily(context.Background(), "AAPL", time.Now().AddDate(-1, 0, 0), time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoData))
}
