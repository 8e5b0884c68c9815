package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestChooseSource(t *testing.T) {
	min := decimal.NewFromInt(100)
	tests := []struct {
		name         string
		filter       Filter
		itemGrouping bool
		want         dataSource
	}{
		{"plain filter stays on rollup", Filter{AccountCategory: "ch"}, false, sourceRollup},
		{"geography stays on rollup", Filter{CountyCodes: []string{"CJ"}}, false, sourceRollup},
		{"functional codes stay on rollup", Filter{FunctionalCodes: []string{"65.02"}}, false, sourceRollup},
		{"row threshold forces facts", Filter{MinRowAmount: &min}, false, sourceFact},
		{"economic codes force facts", Filter{EconomicCodes: []string{"10.01"}}, false, sourceFact},
		{"funding source forces facts", Filter{FundingSourceIds: []int{2}}, false, sourceFact},
		{"pinned report type forces facts", Filter{ReportType: ReportTypeMonthlyExecution}, false, sourceFact},
		{"transfer exclusion forces facts", Filter{ExcludeTransfers: true}, false, sourceFact},
		{"item grouping forces facts", Filter{}, true, sourceFact},
	}
	for _, tt := range tests {
		c := compileFilter(tt.filter, FrequencyYear)
		if got := chooseSource(c, tt.itemGrouping); got != tt.want {
			t.Errorf("%s: chooseSource = %s, want %s", tt.name, got, tt.want)
		}
	}
}
