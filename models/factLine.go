package models

import (
	"github.com/shopspring/decimal"
)

// FactLineItem is one funding-classification-coded amount for one entity,
// one reporting period, one report submission. Finest stored grain;
// immutable once ingested.
type FactLineItem struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	EntityCUI       string          `gorm:"index;size:20;not null" json:"entity_cui"`
	ReportId        int64           `gorm:"index;not null" json:"report_id"`
	ReportType      string          `gorm:"index;size:40;not null" json:"report_type"`
	FunctionalCode  *string         `gorm:"index;size:20" json:"functional_code"`
	EconomicCode    *string         `gorm:"index;size:20" json:"economic_code"`
	FundingSourceId *int            `gorm:"index" json:"funding_source_id"`
	AccountCategory string          `gorm:"index;size:2;not null" json:"account_category"` // "vn" income, "ch" expense
	Year            int             `gorm:"index;not null" json:"year"`
	Month           int             `gorm:"index;not null" json:"month"`
	Quarter         int             `gorm:"index;not null" json:"quarter"`
	MonthlyAmount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"monthly_amount"`
	QuarterlyAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"quarterly_amount"`
	YearlyAmount    decimal.Decimal `gorm:"type:decimal(18,2)" json:"yearly_amount"`
	InQuarterRollup bool            `gorm:"not null;default:false" json:"in_quarter_rollup"`
	InYearRollup    bool            `gorm:"not null;default:false" json:"in_year_rollup"`
}

func (FactLineItem) TableName() string {
	return "fact_line_items"
}

// RollupRow is the pre-aggregated mirror: one row per entity x period x
// report type x account category, refreshed by ingestion. Grain loses
// economic code, funding source and item-level amounts; queries needing
// those must fall back to fact_line_items.
type RollupRow struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	EntityCUI       string          `gorm:"index;size:20;not null" json:"entity_cui"`
	ReportType      string          `gorm:"index;size:40;not null" json:"report_type"`
	FunctionalCode  *string         `gorm:"index;size:20" json:"functional_code"`
	AccountCategory string          `gorm:"index;size:2;not null" json:"account_category"`
	Year            int             `gorm:"index;not null" json:"year"`
	Month           int             `gorm:"index;not null" json:"month"`
	Quarter         int             `gorm:"index;not null" json:"quarter"`
	MonthlyAmount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"monthly_amount"`
	QuarterlyAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"quarterly_amount"`
	YearlyAmount    decimal.Decimal `gorm:"type:decimal(18,2)" json:"yearly_amount"`
}

func (RollupRow) TableName() string {
	return "rollup_rows"
}
