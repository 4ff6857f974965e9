// Package export writes quote listings as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dongwonkwak/erpquote/internal/quotes"
)

const sheetName = "Quotes"

var headers = []string{"Number", "Customer", "Date", "Total", "Status", "Note"}

// QuotesXLSX writes quotes to w as an .xlsx workbook with one header row.
func QuotesXLSX(w io.Writer, list []quotes.Quote) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("create total style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return err
	}

	for r, q := range list {
		row := []any{q.Name, q.PartnerName, q.DateOrder, q.AmountTotal, q.State.Label(), q.Note}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	if len(list) > 0 {
		first, _ := excelize.CoordinatesToCellName(4, 2)
		end, _ := excelize.CoordinatesToCellName(4, len(list)+1)
		if err := f.SetCellStyle(sheetName, first, end, totalStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "F", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
