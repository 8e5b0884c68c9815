package analytics

import (
	"github.com/shopspring/decimal"
)

// Transfer-classification prefixes excluded by the ExcludeTransfers flag.
// Domain policy (inter-administration transfer titles), not caller data.
var (
	transferEconomicPrefixes   = []string{"51", "55.01"}
	transferFunctionalPrefixes = []string{"56.07", "56.17"}
)

// Filter is the structured multi-dimensional filter supplied by the API
// layer. Every field is optional; absent means unconstrained.
type Filter struct {
	AccountCategory    string   `json:"account_category,omitempty" validate:"omitempty,oneof=vn ch"`
	FunctionalCodes    []string `json:"functional_codes,omitempty" validate:"omitempty,dive,max=20"`
	FunctionalPrefixes []string `json:"functional_prefixes,omitempty" validate:"omitempty,dive,max=20"`
	EconomicCodes      []string `json:"economic_codes,omitempty" validate:"omitempty,dive,max=20"`
	EconomicPrefixes   []string `json:"economic_prefixes,omitempty" validate:"omitempty,dive,max=20"`
	FundingSourceIds   []int    `json:"funding_source_ids,omitempty"`
	EntityCUIs         []string `json:"entity_cuis,omitempty" validate:"omitempty,dive,max=20"`
	UATOnly            *bool    `json:"uat_only,omitempty"`
	CountyCodes        []string `json:"county_codes,omitempty" validate:"omitempty,dive,max=4"`
	Regions            []string `json:"regions,omitempty" validate:"omitempty,dive,max=50"`
	MinPopulation      *int64   `json:"min_population,omitempty" validate:"omitempty,min=0"`
	MaxPopulation      *int64   `json:"max_population,omitempty" validate:"omitempty,min=0"`

	// ReportType pins one submission type and bypasses deduplication.
	ReportType string `json:"report_type,omitempty" validate:"omitempty,max=40"`

	ExcludeFunctionalCodes []string `json:"exclude_functional_codes,omitempty" validate:"omitempty,dive,max=20"`
	ExcludeEconomicCodes   []string `json:"exclude_economic_codes,omitempty" validate:"omitempty,dive,max=20"`
	ExcludeTransfers       bool     `json:"exclude_transfers,omitempty"`

	// Row thresholds apply to individual contributing rows before grouping.
	MinRowAmount *decimal.Decimal `json:"min_row_amount,omitempty"`
	MaxRowAmount *decimal.Decimal `json:"max_row_amount,omitempty"`

	// Total thresholds apply to the grouped aggregate (HAVING), which can
	// admit a group whose individual rows would all fail the row threshold
	// of the same nominal value.
	MinTotalAmount *decimal.Decimal `json:"min_total_amount,omitempty"`
	MaxTotalAmount *decimal.Decimal `json:"max_total_amount,omitempty"`
}

// compiledFilter is the compiler's output: ordered predicates over the
// aliased source plus the joins they rely on and the execution hints the
// source router reads.
type compiledFilter struct {
	preds  []Predicate // WHERE, pre-grouping
	having []Predicate // HAVING, post-grouping

	entityJoin bool // needs entities e ON e.cui = f.entity_cui
	uatJoin    bool // needs uats u ON u.id = e.uat_id (implies entityJoin)

	hasRowThreshold  bool // item-level threshold present
	needsItemGrain   bool // touches dimensions absent from the rollup grain
	pinnedReportType string
}

// compileFilter translates the filter into predicates. Fields contribute
// only when present and non-empty; omission already means unconstrained, so
// no "match all" predicate is ever emitted. Geography/entity predicates are
// the only thing that pulls the registry joins in.
func compileFilter(f Filter, freq Frequency) compiledFilter {
	var c compiledFilter
	amountCol := "f." + freq.amountColumn()

	if f.AccountCategory != "" {
		c.preds = append(c.preds, Predicate{Expr: "f.account_category = ?", Args: []any{f.AccountCategory}})
	}
	if len(f.FunctionalCodes) > 0 {
		c.preds = append(c.preds, Predicate{Expr: "f.functional_code IN ?", Args: []any{f.FunctionalCodes}})
	}
	if len(f.FunctionalPrefixes) > 0 {
		c.preds = append(c.preds, prefixDisjunction("f.functional_code", f.FunctionalPrefixes))
	}
	if len(f.EconomicCodes) > 0 {
		c.preds = append(c.preds, Predicate{Expr: "f.economic_code IN ?", Args: []any{f.EconomicCodes}})
		c.needsItemGrain = true
	}
	if len(f.EconomicPrefixes) > 0 {
		c.preds = append(c.preds, prefixDisjunction("f.economic_code", f.EconomicPrefixes))
		c.needsItemGrain = true
	}
	if len(f.FundingSourceIds) > 0 {
		c.preds = append(c.preds, Predicate{Expr: "f.funding_source_id IN ?", Args: []any{f.FundingSourceIds}})
		c.needsItemGrain = true
	}
	if len(f.EntityCUIs) > 0 {
		c.preds = append(c.preds, Predicate{Expr: "f.entity_cui IN ?", Args: []any{f.EntityCUIs}})
	}

	if f.UATOnly != nil {
		c.entityJoin = true
		c.preds = append(c.preds, Predicate{Expr: "e.is_uat = ?", Args: []any{*f.UATOnly}})
	}
	if len(f.CountyCodes) > 0 {
		c.entityJoin, c.uatJoin = true, true
		c.preds = append(c.preds, Predicate{Expr: "u.county_code IN ?", Args: []any{f.CountyCodes}})
	}
	if len(f.Regions) > 0 {
		c.entityJoin, c.uatJoin = true, true
		c.preds = append(c.preds, Predicate{Expr: "u.region IN ?", Args: []any{f.Regions}})
	}
	if f.MinPopulation != nil {
		c.entityJoin, c.uatJoin = true, true
		c.preds = append(c.preds, Predicate{Expr: "u.population >= ?", Args: []any{*f.MinPopulation}})
	}
	if f.MaxPopulation != nil {
		c.entityJoin, c.uatJoin = true, true
		c.preds = append(c.preds, Predicate{Expr: "u.population <= ?", Args: []any{*f.MaxPopulation}})
	}

	for _, code := range f.ExcludeFunctionalCodes {
		c.preds = append(c.preds, nullSafeExclusion("f.functional_code", code))
	}
	for _, code := range f.ExcludeEconomicCodes {
		c.preds = append(c.preds, nullSafeExclusion("f.economic_code", code))
		c.needsItemGrain = true
	}
	if f.ExcludeTransfers {
		for _, p := range transferFunctionalPrefixes {
			c.preds = append(c.preds, nullSafePrefixExclusion("f.functional_code", p))
		}
		for _, p := range transferEconomicPrefixes {
			c.preds = append(c.preds, nullSafePrefixExclusion("f.economic_code", p))
		}
		c.needsItemGrain = true
	}

	if f.MinRowAmount != nil {
		c.preds = append(c.preds, Predicate{Expr: amountCol + " >= ?", Args: []any{*f.MinRowAmount}})
		c.hasRowThreshold = true
	}
	if f.MaxRowAmount != nil {
		c.preds = append(c.preds, Predicate{Expr: amountCol + " <= ?", Args: []any{*f.MaxRowAmount}})
		c.hasRowThreshold = true
	}

	if f.MinTotalAmount != nil {
		c.having = append(c.having, Predicate{Expr: "total_amount >= ?", Args: []any{*f.MinTotalAmount}})
	}
	if f.MaxTotalAmount != nil {
		c.having = append(c.having, Predicate{Expr: "total_amount <= ?", Args: []any{*f.MaxTotalAmount}})
	}

	c.pinnedReportType = f.ReportType
	return c
}
