package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2014-01-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("not-a-date", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestForecastDates(t *testing.T) {
	end := time.Date(2024, 2, 27, 15, 30, 0, 0, time.UTC)
	got := ForecastDates(end, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 dates, got %d", len(got))
	}
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02", "2024-03-03"}
	for i, d := range got {
		if FormatDate(d) != want[i] {
			t.Fatalf("date %d: got %s want %s", i, FormatDate(d), want[i])
		}
		if i > 0 && d.Sub(got[i-1]) != 24*time.Hour {
			t.Fatalf("dates %d and %d are not one day apart", i-1, i)
		}
	}
}

func TestForecastDatesEmpty(t *testing.T) {
	if got := ForecastDates(time.Now(), 0); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestAlignRangeSwaps(t *testing.T) {
	a := time.Date(2024, 5, 2, 13, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	from, to := AlignRange(a, b)
	if FormatDate(from) != "2024-01-02" || FormatDate(to) != "2024-05-02" {
		t.Fatalf("unexpected range %v..%v", from, to)
	}
	if from.Hour() != 0 || to.Hour() != 0 {
		t.Fatalf("expected midnight alignment")
	}
}
