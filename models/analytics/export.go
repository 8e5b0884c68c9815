package analytics

import (
	"fmt"
	"io"

	"github.com/bpopendata/budget_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExportEntityAggregates writes one entity-aggregate page as an xlsx sheet.
func ExportEntityAggregates(w io.Writer, page *EntityAggregatePage) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"

	// Add headers
	f.SetCellValue(sheet, "A1", "CUI")
	f.SetCellValue(sheet, "B1", "EntityName")
	f.SetCellValue(sheet, "C1", "CountyCode")
	f.SetCellValue(sheet, "D1", "Population")
	f.SetCellValue(sheet, "E1", "TotalAmount")

	// Add data
	for i, r := range page.Rows {
		row := i + 2
		f.SetCellValue(sheet, "A"+fmt.Sprint(row), r.EntityCUI)
		f.SetCellValue(sheet, "B"+fmt.Sprint(row), utils.DereferencePtr(r.EntityName, ""))
		f.SetCellValue(sheet, "C"+fmt.Sprint(row), utils.DereferencePtr(r.CountyCode, ""))
		if r.Population != nil {
			f.SetCellValue(sheet, "D"+fmt.Sprint(row), *r.Population)
		}
		f.SetCellValue(sheet, "E"+fmt.Sprint(row), r.TotalAmount.String())
	}

	return f.Write(w)
}
