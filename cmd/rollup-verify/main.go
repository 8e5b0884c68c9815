package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bpopendata/budget_backend/config"
	"github.com/shopspring/decimal"
)

// Spot-checks the ingestion invariant that rollup sums equal fact-level
// sums for every (entity, year, report type, account category) combination
// present in both relations. The engine assumes this holds and never
// reconciles; this tool is how operators notice when ingestion broke it.
//
// Usage: rollup-verify [-year 2023] [-sample 500] [-cui 4267117]

type rollupCheckRow struct {
	EntityCUI       string
	ReportType      string
	AccountCategory string
	Year            int
	RollupSum       decimal.Decimal
	FactSum         decimal.Decimal
}

func main() {
	year := flag.Int("year", 0, "Optional: restrict the check to one year.")
	sample := flag.Int("sample", 500, "Max number of rollup combinations to verify.")
	cui := flag.String("cui", "", "Optional: restrict the check to one entity CUI.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var rows []*rollupCheckRow
	q := db.WithContext(ctx).
		Table("rollup_rows r").
		Select(`r.entity_cui, r.report_type, r.account_category, r.year,
			SUM(r.yearly_amount) AS rollup_sum,
			(SELECT COALESCE(SUM(f.yearly_amount), 0)
			 FROM fact_line_items f
			 WHERE f.entity_cui = r.entity_cui
			   AND f.report_type = r.report_type
			   AND f.account_category = r.account_category
			   AND f.year = r.year
			   AND f.in_year_rollup = 1) AS fact_sum`).
		Group("r.entity_cui, r.report_type, r.account_category, r.year")
	if *year > 0 {
		q = q.Where("r.year = ?", *year)
	}
	if *cui != "" {
		q = q.Where("r.entity_cui = ?", *cui)
	}
	if err := q.Limit(*sample).Scan(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "verification query failed: %v\n", err)
		os.Exit(1)
	}

	var mismatches int
	for _, r := range rows {
		if !r.RollupSum.Equal(r.FactSum) {
			mismatches++
			fmt.Printf("MISMATCH cui=%s type=%s cat=%s year=%d rollup=%s fact=%s diff=%s\n",
				r.EntityCUI, r.ReportType, r.AccountCategory, r.Year,
				r.RollupSum, r.FactSum, r.RollupSum.Sub(r.FactSum))
		}
	}

	fmt.Printf("checked %d combinations, %d mismatches\n", len(rows), mismatches)
	if mismatches > 0 {
		os.Exit(2)
	}
}
