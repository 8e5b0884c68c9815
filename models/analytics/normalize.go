package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Factor is one period marker's multiplier (currency conversion, inflation
// index, per-capita divisor baked in by the provider).
type Factor struct {
	Period string          `json:"period"`
	Factor decimal.Decimal `json:"factor"`
}

// FactorMap is the ordered per-request normalization mapping. A nil map
// means "no normalization"; a non-nil empty map means every period is
// unmapped, so the whole query must come back empty rather than silently
// summing unnormalized amounts.
type FactorMap []Factor

// amountExpr renders the summed amount for one row: the frequency's raw
// column, or, under normalization, a CASE that multiplies by the row
// period's factor. Periods absent from the map yield NULL and therefore
// drop out of SUM entirely — normalization is total, never best-effort.
func (fm FactorMap) amountExpr(freq Frequency, alias string) (string, []any) {
	raw := alias + "." + freq.amountColumn()
	// The engine short-circuits a non-nil empty map before any SQL is
	// built, so len == 0 here always means "no normalization requested".
	if len(fm) == 0 {
		return raw, nil
	}
	var b strings.Builder
	var args []any
	b.WriteString("CASE ")
	b.WriteString(freq.markerExpr(alias))
	for _, f := range fm {
		b.WriteString(" WHEN ? THEN " + raw + " * ?")
		args = append(args, f.Period, f.Factor)
	}
	b.WriteString(" ELSE NULL END")
	return b.String(), args
}
