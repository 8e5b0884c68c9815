package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bpopendata/budget_backend/cache"
	"github.com/bpopendata/budget_backend/config"
	"github.com/bpopendata/budget_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine executes declarative analytics queries against the budget store.
// Stateless between requests apart from the injected cache handle; safe for
// concurrent use. Concurrent identical queries are NOT coalesced: both may
// miss the cache and both will execute (accepted load-shedding policy).
type Engine struct {
	db       *gorm.DB
	cache    cache.Store // may be nil (caching disabled)
	log      *logrus.Logger
	validate *validator.Validate

	timeout  time.Duration
	cacheTTL time.Duration
	slowMs   int64
}

// NewEngine wires the engine. Tunables come from env:
// ANALYTICS_TIMEOUT_SECONDS (default 30), ANALYTICS_CACHE_TTL_SECONDS
// (default 120), ANALYTICS_SLOW_MS (default 500).
func NewEngine(db *gorm.DB, store cache.Store, log *logrus.Logger) *Engine {
	return &Engine{
		db:       db,
		cache:    store,
		log:      log,
		validate: validator.New(),
		timeout:  config.SecondsFromEnv("ANALYTICS_TIMEOUT_SECONDS", 30*time.Second),
		cacheTTL: config.SecondsFromEnv("ANALYTICS_CACHE_TTL_SECONDS", 120*time.Second),
		slowMs:   config.Int64FromEnv("ANALYTICS_SLOW_MS", 500),
	}
}

// AggregateByEntity returns one row per entity with its aggregate amount,
// paginated, with the total entity count computed in the same pass.
func (e *Engine) AggregateByEntity(ctx context.Context, req AggregateRequest) (*EntityAggregatePage, error) {
	if err := e.checkRequest(&req); err != nil {
		return nil, err
	}
	if emptyFactorMap(req.Factors) {
		return &EntityAggregatePage{Rows: []*EntityAggregateRow{}, Limit: req.Limit, Offset: req.Offset}, nil
	}

	desc := QueryDescription{Op: "aggregate_by_entity", Request: req}
	key, err := desc.CacheKey()
	if err != nil {
		return nil, &DatabaseError{Op: desc.Op, Err: err}
	}
	var page EntityAggregatePage
	if e.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	c := compileFilter(req.Filter, req.Frequency)
	src := chooseSource(c, false)
	sql, args, err := buildEntityAggregateSQL(req, c, src)
	if err != nil {
		return nil, err
	}

	var rows []*EntityAggregateRow
	if err := e.run(ctx, desc.Op, sql, args, &rows); err != nil {
		return nil, err
	}
	page = EntityAggregatePage{Rows: rows, Limit: req.Limit, Offset: req.Offset}
	if len(rows) > 0 {
		page.TotalCount = rows[0].TotalCount
	} else if req.Offset > 0 {
		countSQL, countArgs := buildGroupCountSQL(req, c, src,
			[]string{"f.entity_cui AS entity_cui"}, []string{"entity_cui"})
		if err := e.run(ctx, desc.Op+"/count", countSQL, countArgs, &page.TotalCount); err != nil {
			return nil, err
		}
	}
	if page.Rows == nil {
		page.Rows = []*EntityAggregateRow{}
	}

	e.cacheSet(ctx, key, page)
	return &page, nil
}

// AggregateByClassification returns one row per (functional, economic)
// classification pair. Item-grain grouping, so it always scans the
// fact-level relation.
func (e *Engine) AggregateByClassification(ctx context.Context, req AggregateRequest) (*ClassificationAggregatePage, error) {
	if err := e.checkRequest(&req); err != nil {
		return nil, err
	}
	if emptyFactorMap(req.Factors) {
		return &ClassificationAggregatePage{Rows: []*ClassificationAggregateRow{}, Limit: req.Limit, Offset: req.Offset}, nil
	}

	desc := QueryDescription{Op: "aggregate_by_classification", Request: req}
	key, err := desc.CacheKey()
	if err != nil {
		return nil, &DatabaseError{Op: desc.Op, Err: err}
	}
	var page ClassificationAggregatePage
	if e.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	c := compileFilter(req.Filter, req.Frequency)
	src := chooseSource(c, true)
	sql, args, err := buildClassificationAggregateSQL(req, c, src)
	if err != nil {
		return nil, err
	}

	var rows []*ClassificationAggregateRow
	if err := e.run(ctx, desc.Op, sql, args, &rows); err != nil {
		return nil, err
	}
	page = ClassificationAggregatePage{Rows: rows, Limit: req.Limit, Offset: req.Offset}
	if len(rows) > 0 {
		page.TotalCount = rows[0].TotalCount
	} else if req.Offset > 0 {
		countSQL, countArgs := buildGroupCountSQL(req, c, src,
			[]string{"f.functional_code AS functional_code", "f.economic_code AS economic_code"},
			[]string{"functional_code", "economic_code"})
		if err := e.run(ctx, desc.Op+"/count", countSQL, countArgs, &page.TotalCount); err != nil {
			return nil, err
		}
	}
	if page.Rows == nil {
		page.Rows = []*ClassificationAggregateRow{}
	}

	e.cacheSet(ctx, key, page)
	return &page, nil
}

// SeriesByPeriod returns the aggregate amount per period bucket over the
// selection, in chronological order. Normalization factors apply here
// before summation, never after.
func (e *Engine) SeriesByPeriod(ctx context.Context, req AggregateRequest) (*PeriodSeries, error) {
	if err := e.checkRequest(&req); err != nil {
		return nil, err
	}
	if emptyFactorMap(req.Factors) {
		return &PeriodSeries{Frequency: req.Frequency, Buckets: []*PeriodBucket{}}, nil
	}

	desc := QueryDescription{Op: "series_by_period", Request: req}
	key, err := desc.CacheKey()
	if err != nil {
		return nil, &DatabaseError{Op: desc.Op, Err: err}
	}
	var series PeriodSeries
	if e.cacheGet(ctx, key, &series) {
		return &series, nil
	}

	c := compileFilter(req.Filter, req.Frequency)
	src := chooseSource(c, false)
	sql, args, err := buildPeriodSeriesSQL(req, c, src)
	if err != nil {
		return nil, err
	}

	var buckets []*PeriodBucket
	if err := e.run(ctx, desc.Op, sql, args, &buckets); err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []*PeriodBucket{}
	}
	series = PeriodSeries{Frequency: req.Frequency, Buckets: buckets}

	e.cacheSet(ctx, key, series)
	return &series, nil
}

// LineItems lists fact-grain rows. Without deduplication the same logical
// amount would appear once per overlapping submission, so an explicit
// report type is required here rather than silently picking one.
func (e *Engine) LineItems(ctx context.Context, req AggregateRequest) (*LineItemPage, error) {
	if err := e.checkRequest(&req); err != nil {
		return nil, err
	}
	if req.Filter.ReportType == "" {
		return nil, &InvalidFilterError{Reason: "line item queries require an explicit report_type"}
	}
	if emptyFactorMap(req.Factors) {
		return &LineItemPage{Rows: []*LineItemRow{}, Limit: req.Limit, Offset: req.Offset}, nil
	}

	desc := QueryDescription{Op: "line_items", Request: req}
	key, err := desc.CacheKey()
	if err != nil {
		return nil, &DatabaseError{Op: desc.Op, Err: err}
	}
	var page LineItemPage
	if e.cacheGet(ctx, key, &page) {
		return &page, nil
	}

	c := compileFilter(req.Filter, req.Frequency)
	sql, args, err := buildLineItemSQL(req, c)
	if err != nil {
		return nil, err
	}

	var rows []*LineItemRow
	if err := e.run(ctx, desc.Op, sql, args, &rows); err != nil {
		return nil, err
	}
	page = LineItemPage{Rows: rows, Limit: req.Limit, Offset: req.Offset}
	if len(rows) > 0 {
		page.TotalCount = rows[0].TotalCount
	} else if req.Offset > 0 {
		countSQL, countArgs := buildLineItemCountSQL(req, c)
		if err := e.run(ctx, desc.Op+"/count", countSQL, countArgs, &page.TotalCount); err != nil {
			return nil, err
		}
	}
	if page.Rows == nil {
		page.Rows = []*LineItemRow{}
	}

	e.cacheSet(ctx, key, page)
	return &page, nil
}

// ClearCache drops every cached analytics result (both tiers).
func (e *Engine) ClearCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Clear(ctx)
}

func (e *Engine) checkRequest(req *AggregateRequest) error {
	if !req.Frequency.Valid() {
		return &InvalidFilterError{Reason: "frequency must be month, quarter or year"}
	}
	if err := e.validate.Struct(req); err != nil {
		return &InvalidFilterError{Reason: fmt.Sprintf("%v", utils.ProcessValidationErrors(err))}
	}
	req.normalize()
	return nil
}

// emptyFactorMap is the normalization-totality short circuit: a supplied
// but empty map maps no period, so the correct result is empty, not an
// unnormalized passthrough.
func emptyFactorMap(fm FactorMap) bool {
	return fm != nil && len(fm) == 0
}

// run executes one SQL statement under the per-request timeout and
// classifies any failure. Queries run to completion or to timeout; there is
// no cancellation beyond the deadline and no automatic retry.
func (e *Engine) run(ctx context.Context, op, sql string, args []any, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	err := e.db.WithContext(ctx).Raw(sql, args...).Scan(dest).Error
	e.logSlow(ctx, op, started)
	if err != nil {
		err = classify(ctx, op, err)
		config.LogError(e.log, "engine.go", "run", op, nil, err)
		return err
	}
	return nil
}

func (e *Engine) logSlow(ctx context.Context, op string, started time.Time) {
	d := time.Since(started)
	if d.Milliseconds() < e.slowMs {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	e.log.WithFields(logrus.Fields{
		"module":         "analytics",
		"op":             op,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
	}).Warn("slow analytics query")
}

func (e *Engine) cacheGet(ctx context.Context, key string, dest any) bool {
	if e.cache == nil {
		return false
	}
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		config.LogError(e.log, "engine.go", "cacheGet", key, nil, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		config.LogError(e.log, "engine.go", "cacheGet", key, nil, err)
		return false
	}
	return true
}

func (e *Engine) cacheSet(ctx context.Context, key string, value any) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		config.LogError(e.log, "engine.go", "cacheSet", key, nil, err)
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.cacheTTL); err != nil {
		config.LogError(e.log, "engine.go", "cacheSet", key, nil, err)
	}
}
