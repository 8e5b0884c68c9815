package analytics

import (
	"strings"
	"testing"

	"github.com/bpopendata/budget_backend/utils"
	"github.com/shopspring/decimal"
)

func TestCompileEmptyFilterEmitsNothing(t *testing.T) {
	c := compileFilter(Filter{}, FrequencyYear)
	if len(c.preds) != 0 {
		t.Errorf("empty filter must contribute no predicates: %+v", c.preds)
	}
	if c.entityJoin || c.uatJoin {
		t.Error("empty filter must not trigger registry joins")
	}
	if c.needsItemGrain || c.hasRowThreshold {
		t.Error("empty filter must not force the fact-level source")
	}
}

func TestCompileGeographyTriggersJoins(t *testing.T) {
	tests := []struct {
		name       string
		filter     Filter
		entityJoin bool
		uatJoin    bool
	}{
		{"uat only flag", Filter{UATOnly: utils.NewTrue()}, true, false},
		{"county codes", Filter{CountyCodes: []string{"CJ"}}, true, true},
		{"regions", Filter{Regions: []string{"Nord-Vest"}}, true, true},
		{"population", Filter{MinPopulation: ptrInt64(1000)}, true, true},
		{"entity cuis, no join", Filter{EntityCUIs: []string{"4267117"}}, false, false},
	}
	for _, tt := range tests {
		c := compileFilter(tt.filter, FrequencyYear)
		if c.entityJoin != tt.entityJoin || c.uatJoin != tt.uatJoin {
			t.Errorf("%s: joins = (entity=%v, uat=%v), want (%v, %v)",
				tt.name, c.entityJoin, c.uatJoin, tt.entityJoin, tt.uatJoin)
		}
	}
}

func TestCompileNullSafeExclusion(t *testing.T) {
	c := compileFilter(Filter{ExcludeEconomicCodes: []string{"10.01"}}, FrequencyYear)
	if len(c.preds) != 1 {
		t.Fatalf("expected one predicate, got %d", len(c.preds))
	}
	expr := c.preds[0].Expr
	// A row with an unset economic code cannot be positively known to be
	// the excluded one, so it has to survive.
	if !strings.Contains(expr, "f.economic_code IS NULL OR") {
		t.Errorf("exclusion is not null-safe: %s", expr)
	}
	if c.preds[0].Args[0] != "10.01" {
		t.Errorf("args = %v", c.preds[0].Args)
	}
}

func TestCompilePrefixDisjunction(t *testing.T) {
	c := compileFilter(Filter{FunctionalPrefixes: []string{"65", "66"}}, FrequencyYear)
	if len(c.preds) != 1 {
		t.Fatalf("expected one predicate, got %d", len(c.preds))
	}
	p := c.preds[0]
	if strings.Count(p.Expr, "LIKE ?") != 2 || !strings.Contains(p.Expr, " OR ") {
		t.Errorf("prefixes must OR starts-with conditions: %s", p.Expr)
	}
	if p.Args[0] != "65%" || p.Args[1] != "66%" {
		t.Errorf("args = %v", p.Args)
	}
}

func TestCompileExactCodesUseIn(t *testing.T) {
	c := compileFilter(Filter{FunctionalCodes: []string{"65.02", "66.02"}}, FrequencyYear)
	if len(c.preds) != 1 || !strings.Contains(c.preds[0].Expr, "IN ?") {
		t.Errorf("exact codes must compile to a single IN predicate: %+v", c.preds)
	}
}

func TestCompileRowVsTotalThresholds(t *testing.T) {
	min := decimal.NewFromInt(1000)
	c := compileFilter(Filter{MinRowAmount: &min, MinTotalAmount: &min}, FrequencyMonth)
	if !c.hasRowThreshold {
		t.Error("row threshold not flagged")
	}
	if len(c.preds) != 1 || c.preds[0].Expr != "f.monthly_amount >= ?" {
		t.Errorf("row threshold must hit the frequency's column pre-grouping: %+v", c.preds)
	}
	if len(c.having) != 1 || c.having[0].Expr != "total_amount >= ?" {
		t.Errorf("total threshold must land in HAVING: %+v", c.having)
	}
}

func TestCompileExcludeTransfers(t *testing.T) {
	c := compileFilter(Filter{ExcludeTransfers: true}, FrequencyYear)
	if len(c.preds) != len(transferFunctionalPrefixes)+len(transferEconomicPrefixes) {
		t.Fatalf("expected one null-safe exclusion per transfer prefix, got %d", len(c.preds))
	}
	for _, p := range c.preds {
		if !strings.Contains(p.Expr, "IS NULL OR") || !strings.Contains(p.Expr, "NOT LIKE ?") {
			t.Errorf("transfer exclusion must be a null-safe NOT LIKE: %s", p.Expr)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`10%_\`); got != `10\%\_\\` {
		t.Errorf("escapeLike = %q", got)
	}
}

func ptrInt64(v int64) *int64 { return &v }
