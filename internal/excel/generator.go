package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

const (
	summarySheet = "Summary"
	billsSheet   = "Bills"
)

type Generator struct {
	loc *time.Location
}

func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

func (g *Generator) AccountWorkbook(report model.AccountReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(billsSheet); err != nil {
		return nil, err
	}
	if err := g.writeBills(file, report.Bills); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.AccountReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	date := report.Date
	if date == "" {
		date = "all"
	}
	summary := report.Summary

	set("A1", "Date")
	set("B1", date)
	set("A2", "Entries")
	set("B2", summary.TotalEntries)
	set("A3", "Total CTN fee")
	set("B3", summary.TotalCTNFee.Float64())
	set("A4", "Total service fee")
	set("B4", summary.TotalServiceFee.Float64())
	set("A5", "Bank transfer total")
	set("B5", summary.BankTotal.Float64())
	set("A6", "Allinpay 85% total")
	set("B6", summary.Allinpay85Total.Float64())
	set("A7", "Reserve total")
	set("B7", summary.ReserveTotal.Float64())

	_ = file.SetColWidth(summarySheet, "A", "A", 24)
	_ = file.SetColWidth(summarySheet, "B", "B", 16)
}

func (g *Generator) writeBills(file *excelize.File, bills []model.Bill) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(billsSheet, cell, value)
	}

	headers := []string{
		"B/L number",
		"Customer",
		"CTN number",
		"Payment method",
		"Payment status",
		"Reserve status",
		"Completed at",
		"CTN fee",
		"Service fee",
		"Total",
		"Allinpay 85%",
		"Reserve",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		set(cell, header)
	}

	for i, bill := range bills {
		row := i + 2
		var captured, reserve interface{}
		if billing.IsAllinpay(bill) {
			captured = billing.CapturedPortion(bill.Total()).Float64()
			reserve = billing.ReservePortion(bill.Total()).Float64()
		}

		set(fmt.Sprintf("A%d", row), bill.BLNumber)
		set(fmt.Sprintf("B%d", row), bill.CustomerName)
		set(fmt.Sprintf("C%d", row), bill.UniqueNumber)
		set(fmt.Sprintf("D%d", row), bill.PaymentMethod)
		set(fmt.Sprintf("E%d", row), bill.PaymentStatus)
		set(fmt.Sprintf("F%d", row), bill.ReserveStatus)
		set(fmt.Sprintf("G%d", row), g.formatTime(bill.CompletedAt))
		set(fmt.Sprintf("H%d", row), bill.CTNFee.Float64())
		set(fmt.Sprintf("I%d", row), bill.ServiceFee.Float64())
		set(fmt.Sprintf("J%d", row), bill.Total().Float64())
		set(fmt.Sprintf("K%d", row), captured)
		set(fmt.Sprintf("L%d", row), reserve)
	}

	_ = file.SetColWidth(billsSheet, "A", "C", 18)
	_ = file.SetColWidth(billsSheet, "D", "F", 16)
	_ = file.SetColWidth(billsSheet, "G", "G", 20)
	_ = file.SetColWidth(billsSheet, "H", "L", 14)
	return nil
}

func (g *Generator) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(g.loc).Format("2006-01-02 15:04:05")
}
