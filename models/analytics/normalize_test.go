package analytics

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountExprWithoutNormalization(t *testing.T) {
	var fm FactorMap
	expr, args := fm.amountExpr(FrequencyQuarter, "f")
	if expr != "f.quarterly_amount" {
		t.Errorf("expr = %q", expr)
	}
	if len(args) != 0 {
		t.Errorf("args = %v", args)
	}
}

func TestAmountExprNormalizationIsTotal(t *testing.T) {
	fm := FactorMap{
		{Period: "2022", Factor: decimal.NewFromFloat(1.0)},
		{Period: "2023", Factor: decimal.NewFromFloat(0.95)},
	}
	expr, args := fm.amountExpr(FrequencyYear, "f")

	if !strings.HasPrefix(expr, "CASE CAST(f.year AS CHAR)") {
		t.Errorf("normalization must dispatch on the period marker: %s", expr)
	}
	// Unmapped periods must fall out of SUM entirely, never pass through
	// unmultiplied.
	if !strings.HasSuffix(expr, "ELSE NULL END") {
		t.Errorf("unmapped periods must yield NULL: %s", expr)
	}
	if strings.Count(expr, "WHEN ? THEN f.yearly_amount * ?") != 2 {
		t.Errorf("one WHEN arm per factor: %s", expr)
	}
	if len(args) != 4 || args[0] != "2022" || args[2] != "2023" {
		t.Errorf("args = %v", args)
	}
}

func TestAmountExprMultiplicationBeforeSummation(t *testing.T) {
	fm := FactorMap{{Period: "2023-Q1", Factor: decimal.NewFromInt(2)}}
	req := AggregateRequest{
		Period:    PeriodSelection{Markers: []string{"2023-Q1"}},
		Frequency: FrequencyQuarter,
		Factors:   fm,
		Limit:     10,
	}
	req.normalize()
	c := compileFilter(req.Filter, req.Frequency)
	sql, _, err := buildPeriodSeriesSQL(req, c, sourceRollup)
	if err != nil {
		t.Fatal(err)
	}
	// SUM must wrap the already-multiplied per-row amount.
	if !strings.Contains(sql, "SUM(t.amount)") {
		t.Errorf("summation must happen after multiplication: %s", sql)
	}
	if !strings.Contains(sql, "* ? ELSE NULL END AS amount") {
		t.Errorf("per-row amount must carry the factor: %s", sql)
	}
}
