package analytics

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// testEngine builds an engine without a database; only paths that return
// before reaching the store can be exercised this way.
func testEngine() *Engine {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewEngine(nil, nil, log)
}

func validRequest() AggregateRequest {
	return AggregateRequest{
		Filter:    Filter{AccountCategory: "ch"},
		Period:    PeriodSelection{Start: "2023", End: "2023"},
		Frequency: FrequencyYear,
	}
}

func TestEngineRejectsBadFrequency(t *testing.T) {
	e := testEngine()
	req := validRequest()
	req.Frequency = "decade"
	for name, call := range map[string]func() error{
		"entity": func() error {
			_, err := e.AggregateByEntity(context.Background(), req)
			return err
		},
		"series": func() error {
			_, err := e.SeriesByPeriod(context.Background(), req)
			return err
		},
	} {
		if err := call(); ErrorKind(err) != KindInvalidFilter {
			t.Errorf("%s: want invalid filter for bad frequency, got %v", name, err)
		}
	}
}

func TestEngineRejectsBadAccountCategory(t *testing.T) {
	e := testEngine()
	req := validRequest()
	req.Filter.AccountCategory = "expenses"
	_, err := e.AggregateByEntity(context.Background(), req)
	if ErrorKind(err) != KindInvalidFilter {
		t.Errorf("want invalid filter, got %v", err)
	}
}

// A non-nil empty factor map maps no period at all, so every operation must
// come back empty without touching the database (db is nil here, a query
// attempt would panic).
func TestEngineEmptyFactorMapShortCircuits(t *testing.T) {
	e := testEngine()
	req := validRequest()
	req.Factors = FactorMap{}

	page, err := e.AggregateByEntity(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 0 || page.TotalCount != 0 {
		t.Errorf("expected an empty page, got %+v", page)
	}

	series, err := e.SeriesByPeriod(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(series.Buckets) != 0 {
		t.Errorf("expected no buckets, got %d", len(series.Buckets))
	}

	req.Filter.ReportType = ReportTypeAnnualExecution
	items, err := e.LineItems(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(items.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(items.Rows))
	}
}

func TestEngineNonEmptyFactorMapIsNotAShortCircuit(t *testing.T) {
	if emptyFactorMap(nil) {
		t.Error("nil map means no normalization, not an empty result")
	}
	if !emptyFactorMap(FactorMap{}) {
		t.Error("non-nil empty map must short-circuit")
	}
	if emptyFactorMap(FactorMap{{Period: "2023", Factor: decimal.NewFromInt(1)}}) {
		t.Error("populated map must run")
	}
}

func TestEngineLineItemsRequireReportType(t *testing.T) {
	e := testEngine()
	req := validRequest()
	_, err := e.LineItems(context.Background(), req)
	if ErrorKind(err) != KindInvalidFilter {
		t.Errorf("want invalid filter without a pinned report type, got %v", err)
	}
}

func TestEngineClearCacheWithoutStore(t *testing.T) {
	e := testEngine()
	if err := e.ClearCache(context.Background()); err != nil {
		t.Errorf("nil store clear must be a no-op, got %v", err)
	}
}
