package analytics

import (
	"fmt"
	"strings"

	"github.com/bpopendata/budget_backend/models"
	"github.com/shopspring/decimal"
)

const (
	DefaultLimit = 25
	MaxLimit     = 500
)

// AggregateRequest is the caller's full query description for the grouped
// analytics operations: filter + period + frequency + pagination + optional
// normalization factors and sort.
type AggregateRequest struct {
	Filter    Filter          `json:"filter"`
	Period    PeriodSelection `json:"period"`
	Frequency Frequency       `json:"frequency" validate:"required,oneof=month quarter year"`
	Factors   FactorMap       `json:"factors,omitempty"`
	SortBy    string          `json:"sort_by,omitempty"`
	SortDir   string          `json:"sort_dir,omitempty" validate:"omitempty,oneof=asc desc"`
	Limit     int             `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset    int             `json:"offset,omitempty" validate:"omitempty,min=0"`
}

func (r *AggregateRequest) normalize() {
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.SortDir == "" {
		r.SortDir = "desc"
	}
}

type EntityAggregateRow struct {
	EntityCUI   string          `json:"entity_cui"`
	EntityName  *string         `json:"entity_name"`
	Population  *int64          `json:"population"`
	CountyCode  *string         `json:"county_code"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalCount  int64           `json:"-"`
}

type EntityAggregatePage struct {
	Rows       []*EntityAggregateRow `json:"rows"`
	TotalCount int64                 `json:"total_count"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

type ClassificationAggregateRow struct {
	FunctionalCode *string         `json:"functional_code"`
	EconomicCode   *string         `json:"economic_code"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalCount     int64           `json:"-"`
}

type ClassificationAggregatePage struct {
	Rows       []*ClassificationAggregateRow `json:"rows"`
	TotalCount int64                         `json:"total_count"`
	Limit      int                           `json:"limit"`
	Offset     int                           `json:"offset"`
}

type PeriodBucket struct {
	Period      string          `json:"period" gorm:"column:period_marker"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type PeriodSeries struct {
	Frequency Frequency       `json:"frequency"`
	Buckets   []*PeriodBucket `json:"buckets"`
}

type LineItemRow struct {
	models.FactLineItem `gorm:"embedded"`
	TotalCount          int64 `json:"-"`
}

type LineItemPage struct {
	Rows       []*LineItemRow `json:"rows"`
	TotalCount int64          `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}

// Sort field whitelists per query shape. Sorting is only ever rendered from
// these fixed expressions, never from caller strings.
var entitySortFields = map[string]string{
	"amount":     "g.total_amount",
	"name":       "ent.name",
	"population": "uat.population",
	"cui":        "g.entity_cui",
}

var classificationSortFields = map[string]string{
	"amount":          "g.total_amount",
	"functional_code": "g.functional_code",
	"economic_code":   "g.economic_code",
}

var lineItemSortFields = map[string]string{
	"amount": "t.amount",
	"year":   "t.year",
	"cui":    "t.entity_cui",
}

// orderClause renders a null-last ORDER BY: rows with an unset sort key go
// after all set keys in either direction. UX rule, not a storage default.
func orderClause(sortExpr, dir string) string {
	d := "DESC"
	if strings.EqualFold(dir, "asc") {
		d = "ASC"
	}
	return fmt.Sprintf("(%s IS NULL), %s %s", sortExpr, sortExpr, d)
}

// sqlBuilder accumulates SQL text and the args for its placeholders in
// textual order.
type sqlBuilder struct {
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) write(sql string, args ...any) {
	b.sb.WriteString(sql)
	b.args = append(b.args, args...)
}

func (b *sqlBuilder) writePreds(keyword string, preds []Predicate) {
	if len(preds) == 0 {
		return
	}
	expr, args := andPredicates(preds)
	b.write(" "+keyword+" "+expr, args...)
}

// innerSelect renders the deepest layer: the chosen source with filter and
// period predicates applied, one output column per needed dimension, the
// frequency's (possibly normalized) amount, and, when no report type is
// pinned, the dedup priority columns.
func innerSelect(b *sqlBuilder, src dataSource, c compiledFilter, periodPreds []Predicate, freq Frequency, fm FactorMap, dimCols []string) {
	amountExpr, amountArgs := fm.amountExpr(freq, "f")

	cols := make([]string, 0, len(dimCols)+2)
	cols = append(cols, dimCols...)
	cols = append(cols, amountExpr+" AS amount")
	dedup := c.pinnedReportType == ""
	if dedup {
		cols = append(cols, dedupColumns("f"))
	}

	b.write("SELECT "+strings.Join(cols, ", "), amountArgs...)
	b.write(fmt.Sprintf(" FROM %s f", src))
	if c.entityJoin {
		b.write(" JOIN entities e ON e.cui = f.entity_cui")
	}
	if c.uatJoin {
		b.write(" LEFT JOIN uats u ON u.id = e.uat_id")
	}

	preds := make([]Predicate, 0, len(c.preds)+len(periodPreds)+1)
	if c.pinnedReportType != "" {
		preds = append(preds, Predicate{Expr: "f.report_type = ?", Args: []any{c.pinnedReportType}})
	}
	preds = append(preds, periodPreds...)
	preds = append(preds, c.preds...)
	b.writePreds("WHERE", preds)
}

// groupedSelect wraps the inner select, drops losing duplicate submissions
// and groups to the requested dimension with the aggregate thresholds.
func groupedSelect(b *sqlBuilder, src dataSource, c compiledFilter, periodPreds []Predicate, freq Frequency, fm FactorMap, dimCols []string, groupAliases []string) {
	outCols := make([]string, 0, len(groupAliases)+1)
	for _, a := range groupAliases {
		outCols = append(outCols, "t."+a)
	}
	outCols = append(outCols, "SUM(t.amount) AS total_amount")

	b.write("SELECT " + strings.Join(outCols, ", ") + " FROM (")
	innerSelect(b, src, c, periodPreds, freq, fm, dimCols)
	b.write(") t")
	if c.pinnedReportType == "" {
		b.write(" WHERE " + dedupCondition)
	}
	groupExprs := make([]string, 0, len(groupAliases))
	for _, a := range groupAliases {
		groupExprs = append(groupExprs, "t."+a)
	}
	b.write(" GROUP BY " + strings.Join(groupExprs, ", "))
	b.writePreds("HAVING", c.having)
}

// buildEntityAggregateSQL: one row per entity with its total, decorated
// with registry data, count over the whole filtered set in the same pass.
func buildEntityAggregateSQL(req AggregateRequest, c compiledFilter, src dataSource) (string, []any, error) {
	sortExpr, ok := entitySortFields[defaultSort(req.SortBy, "amount")]
	if !ok {
		return "", nil, &InvalidFilterError{Reason: fmt.Sprintf("unknown sort field %q", req.SortBy)}
	}
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")

	var b sqlBuilder
	b.write("SELECT g.entity_cui, g.total_amount, ent.name AS entity_name, uat.population, uat.county_code, COUNT(*) OVER () AS total_count FROM (")
	groupedSelect(&b, src, c, periodPreds, req.Frequency, req.Factors,
		[]string{"f.entity_cui AS entity_cui"}, []string{"entity_cui"})
	b.write(") g")
	b.write(" LEFT JOIN entities ent ON ent.cui = g.entity_cui")
	b.write(" LEFT JOIN uats uat ON uat.id = ent.uat_id")
	b.write(" ORDER BY " + orderClause(sortExpr, req.SortDir) + ", g.entity_cui ASC")
	b.write(" LIMIT ? OFFSET ?", req.Limit, req.Offset)
	return b.sb.String(), b.args, nil
}

// buildClassificationAggregateSQL: one row per (functional, economic) code
// pair. Item grain, so the router always lands on the fact source.
func buildClassificationAggregateSQL(req AggregateRequest, c compiledFilter, src dataSource) (string, []any, error) {
	sortExpr, ok := classificationSortFields[defaultSort(req.SortBy, "amount")]
	if !ok {
		return "", nil, &InvalidFilterError{Reason: fmt.Sprintf("unknown sort field %q", req.SortBy)}
	}
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")

	var b sqlBuilder
	b.write("SELECT g.functional_code, g.economic_code, g.total_amount, COUNT(*) OVER () AS total_count FROM (")
	groupedSelect(&b, src, c, periodPreds, req.Frequency, req.Factors,
		[]string{"f.functional_code AS functional_code", "f.economic_code AS economic_code"},
		[]string{"functional_code", "economic_code"})
	b.write(") g")
	b.write(" ORDER BY " + orderClause(sortExpr, req.SortDir) + ", g.functional_code ASC, g.economic_code ASC")
	b.write(" LIMIT ? OFFSET ?", req.Limit, req.Offset)
	return b.sb.String(), b.args, nil
}

// buildPeriodSeriesSQL: one bucket per period marker, chronological, no
// pagination. This is where normalization matters most.
func buildPeriodSeriesSQL(req AggregateRequest, c compiledFilter, src dataSource) (string, []any, error) {
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")

	dimCols := []string{
		req.Frequency.markerExpr("f") + " AS period_marker",
		"f.year AS year",
	}
	groupAliases := []string{"period_marker", "year"}
	if sub := req.Frequency.subColumn(); sub != "" {
		dimCols = append(dimCols, fmt.Sprintf("f.%s AS sub_period", sub))
		groupAliases = append(groupAliases, "sub_period")
	}

	var b sqlBuilder
	b.write("SELECT g.period_marker, g.total_amount FROM (")
	groupedSelect(&b, src, c, periodPreds, req.Frequency, req.Factors, dimCols, groupAliases)
	b.write(") g")
	if req.Frequency.subColumn() != "" {
		b.write(" ORDER BY g.year ASC, g.sub_period ASC")
	} else {
		b.write(" ORDER BY g.year ASC")
	}
	return b.sb.String(), b.args, nil
}

// buildLineItemSQL: fact-grain listing. No grouping and no dedup; callers
// must pin a report type (enforced by the engine before this runs).
func buildLineItemSQL(req AggregateRequest, c compiledFilter) (string, []any, error) {
	sortExpr, ok := lineItemSortFields[defaultSort(req.SortBy, "amount")]
	if !ok {
		return "", nil, &InvalidFilterError{Reason: fmt.Sprintf("unknown sort field %q", req.SortBy)}
	}
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")

	dimCols := []string{
		"f.id AS id", "f.entity_cui AS entity_cui", "f.report_id AS report_id",
		"f.report_type AS report_type", "f.functional_code AS functional_code",
		"f.economic_code AS economic_code", "f.funding_source_id AS funding_source_id",
		"f.account_category AS account_category", "f.year AS year",
		"f.month AS month", "f.quarter AS quarter",
		"f.monthly_amount AS monthly_amount", "f.quarterly_amount AS quarterly_amount",
		"f.yearly_amount AS yearly_amount",
		"f.in_quarter_rollup AS in_quarter_rollup", "f.in_year_rollup AS in_year_rollup",
	}

	var b sqlBuilder
	b.write("SELECT t.*, COUNT(*) OVER () AS total_count FROM (")
	innerSelect(&b, sourceFact, c, periodPreds, req.Frequency, req.Factors, dimCols)
	b.write(") t")
	b.write(" ORDER BY " + orderClause(sortExpr, req.SortDir) + ", t.id ASC")
	b.write(" LIMIT ? OFFSET ?", req.Limit, req.Offset)
	return b.sb.String(), b.args, nil
}

// buildGroupCountSQL counts the groups the filter admits. Only used as a
// fallback when a requested page lands past the end of the result set and
// the windowed total_count column therefore came back with zero rows.
func buildGroupCountSQL(req AggregateRequest, c compiledFilter, src dataSource, dimCols, groupAliases []string) (string, []any) {
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")
	var b sqlBuilder
	b.write("SELECT COUNT(*) FROM (")
	groupedSelect(&b, src, c, periodPreds, req.Frequency, req.Factors, dimCols, groupAliases)
	b.write(") g")
	return b.sb.String(), b.args
}

// buildLineItemCountSQL is the fact-grain counterpart of buildGroupCountSQL.
func buildLineItemCountSQL(req AggregateRequest, c compiledFilter) (string, []any) {
	periodPreds := ResolvePeriod(req.Period, req.Frequency, "f")
	var b sqlBuilder
	b.write("SELECT COUNT(*) FROM (")
	innerSelect(&b, sourceFact, c, periodPreds, req.Frequency, req.Factors, []string{"f.id AS id"})
	b.write(") t")
	return b.sb.String(), b.args
}

func defaultSort(sortBy, def string) string {
	if sortBy == "" {
		return def
	}
	return sortBy
}
