package analytics

import (
	"fmt"
	"strings"
)

// Report submission types, highest priority first. For a given entity and
// year several submissions of different types may overlap; unless the
// caller pins one, exactly one type is kept per (entity, year) by minimum
// priority. Unknown types rank last.
const (
	ReportTypeMonthlyExecution   = "EXECUTIE_LUNARA"
	ReportTypeQuarterlyExecution = "EXECUTIE_TRIMESTRIALA"
	ReportTypeAnnualExecution    = "EXECUTIE_ANUALA"

	otherReportTypePriority = 4
)

var reportTypePriorities = map[string]int{
	ReportTypeMonthlyExecution:   1,
	ReportTypeQuarterlyExecution: 2,
	ReportTypeAnnualExecution:    3,
}

// ReportTypePriority returns the fixed rank of a report type.
func ReportTypePriority(reportType string) int {
	if p, ok := reportTypePriorities[reportType]; ok {
		return p
	}
	return otherReportTypePriority
}

// KnownReportType reports whether the type is one of the ranked forms.
func KnownReportType(reportType string) bool {
	_, ok := reportTypePriorities[reportType]
	return ok
}

// reportPriorityExpr renders the priority CASE over the aliased source's
// report_type column. The types are domain constants, so they are inlined.
func reportPriorityExpr(alias string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE %s.report_type", alias)
	for _, rt := range []string{ReportTypeMonthlyExecution, ReportTypeQuarterlyExecution, ReportTypeAnnualExecution} {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", rt, reportTypePriorities[rt])
	}
	fmt.Fprintf(&b, " ELSE %d END", otherReportTypePriority)
	return b.String()
}

// dedupColumns are the extra columns the inner select needs so the outer
// query can keep only the minimum-priority submission per (entity, year).
func dedupColumns(alias string) string {
	prio := reportPriorityExpr(alias)
	return fmt.Sprintf(
		"%s AS report_prio, MIN(%s) OVER (PARTITION BY %s.entity_cui, %s.year) AS min_report_prio",
		prio, prio, alias, alias,
	)
}

// dedupCondition filters the wrapped select down to winning submissions.
const dedupCondition = "t.report_prio = t.min_report_prio"
