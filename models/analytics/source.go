package analytics

// dataSource names one of the two physical relations a query can scan.
type dataSource string

const (
	sourceRollup dataSource = "rollup_rows"
	sourceFact   dataSource = "fact_line_items"
)

// chooseSource routes a query to the pre-aggregated rollup unless the
// filter needs something only the fact-level relation has: item-level
// amount thresholds, an explicitly pinned report type, any dimension
// outside the rollup grain, or a grouping at item grain. Rollups are much
// cheaper to scan but coarser.
func chooseSource(c compiledFilter, itemGrainGrouping bool) dataSource {
	if c.hasRowThreshold || c.needsItemGrain || itemGrainGrouping {
		return sourceFact
	}
	if c.pinnedReportType != "" {
		return sourceFact
	}
	return sourceRollup
}
