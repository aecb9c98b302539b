package expense

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
)

type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

func (f ExportFormat) IsValid() bool {
	return f == FormatXLSX || f == FormatPDF
}

func (f ExportFormat) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Report is a filtered, sorted expense listing ready to render.
type Report struct {
	Expenses    []Expense
	Drivers     reference.Table[driver.Driver]
	Criteria    FilterCriteria
	Sort        SortCriteria
	GeneratedAt time.Time
}

// Totals sums amountFinal per currency.
func (r Report) Totals() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, e := range r.Expenses {
		totals[e.Currency] = totals[e.Currency].Add(e.AmountFinal)
	}
	return totals
}

func (r Report) currencies() []string {
	totals := r.Totals()
	out := make([]string, 0, len(totals))
	for c := range totals {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (r Report) criteriaLines() []string {
	lines := []string{fmt.Sprintf("Sort: %s %s", r.Sort.SortBy, r.Sort.SortOrder)}
	if r.Criteria.SearchQuery != "" {
		lines = append(lines, fmt.Sprintf("Search: %s", r.Criteria.SearchQuery))
	}
	if r.Criteria.TypeFilter != "" {
		lines = append(lines, fmt.Sprintf("Type: %s", r.Criteria.TypeFilter))
	}
	if r.Criteria.DateFrom != "" {
		lines = append(lines, fmt.Sprintf("From: %s", r.Criteria.DateFrom))
	}
	if r.Criteria.DateTo != "" {
		lines = append(lines, fmt.Sprintf("To: %s", r.Criteria.DateTo))
	}
	return lines
}

// Render dispatches on format.
func (r Report) Render(format ExportFormat) ([]byte, error) {
	switch format {
	case FormatPDF:
		return BuildPDF(r)
	case FormatXLSX:
		return BuildXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// BuildPDF renders the report as a single table.
func BuildPDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Expense Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	for _, line := range r.criteriaLines() {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Expenses: %d", len(r.Expenses)))
	pdf.Ln(5)
	totals := r.Totals()
	for _, c := range r.currencies() {
		pdf.Cell(0, 6, fmt.Sprintf("Total (%s): %s", c, totals[c].StringFixed(2)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Driver", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Merchant", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Currency", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, e := range r.Expenses {
		pdf.CellFormat(30, 6, displayDate(e), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, driverName(e, r.Drivers), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, e.MerchantName(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(e.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, e.CategoryName(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, e.AmountFinal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, e.Currency, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders a summary sheet and one row per expense.
func BuildXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	itemsSheet := "expenses"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Expense Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", r.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Expenses")
	_ = f.SetCellValue(summarySheet, "B4", len(r.Expenses))
	row := 5
	for _, line := range r.criteriaLines() {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), line)
		row++
	}
	totals := r.Totals()
	for _, c := range r.currencies() {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total "+c)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), totals[c].InexactFloat64())
		row++
	}

	headers := []string{"ID", "Date", "Driver", "Merchant", "Type", "Category", "Amount", "Currency", "Kilometers"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}
	for i, e := range r.Expenses {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), e.ID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), displayDate(e))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), driverName(e, r.Drivers))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), e.MerchantName())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), string(e.Type))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), e.CategoryName())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("G%d", row), e.AmountFinal.InexactFloat64())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("H%d", row), e.Currency)
		if e.Kilometers != nil {
			_ = f.SetCellValue(itemsSheet, fmt.Sprintf("I%d", row), *e.Kilometers)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// displayDate shows the calendar day, or the raw value when it does not parse.
func displayDate(e Expense) string {
	if t, ok := e.ParsedDate(); ok {
		return t.Format("2006-01-02")
	}
	return e.Date
}
