package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/logistics-bills/internal/billing"
	"github.com/nurpe/logistics-bills/internal/model"
)

const fontName = "Helvetica"

type Generator struct {
	issuer string
	loc    *time.Location
}

func NewGenerator(issuer string, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{issuer: issuer, loc: loc}
}

func (g *Generator) Invoice(bill model.Bill, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(g.issuer), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(fontName, "", 10)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("B/L number: %s", safeValue(bill.BLNumber))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Invoice date: %s", formatDate(issuedAt.In(g.loc))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("CTN number: %s", safeValue(bill.UniqueNumber))), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	addBlock(pdf, tr, "Bill to", []string{
		safeValue(bill.CustomerName),
		fmt.Sprintf("Email: %s", safeValue(bill.CustomerEmail)),
		fmt.Sprintf("Phone: %s", safeValue(bill.CustomerPhone)),
	})
	pdf.Ln(2)
	addBlock(pdf, tr, "Shipment", []string{
		fmt.Sprintf("Shipper: %s", safeValue(bill.Shipper)),
		fmt.Sprintf("Consignee: %s", safeValue(bill.Consignee)),
		fmt.Sprintf("Port of loading: %s", safeValue(bill.PortOfLoading)),
		fmt.Sprintf("Port of discharge: %s", safeValue(bill.PortOfDischarge)),
		fmt.Sprintf("Containers: %s", safeValue(bill.ContainerNumbers)),
		fmt.Sprintf("Flight / vessel: %s", safeValue(bill.FlightOrVessel)),
		fmt.Sprintf("Goods: %s", safeValue(bill.ProductDescription)),
	})
	pdf.Ln(4)

	widths := []float64{130, 50}
	drawTableRow(pdf, tr, []string{"Description", "Amount"}, widths, true)
	drawTableRow(pdf, tr, []string{"CTN fee", bill.CTNFee.String()}, widths, false)
	drawTableRow(pdf, tr, []string{"Service fee", bill.ServiceFee.String()}, widths, false)
	drawTableRow(pdf, tr, []string{"Total", bill.Total().String()}, widths, true)

	if bill.PaymentLink != "" {
		pdf.Ln(4)
		pdf.SetFont(fontName, "", 10)
		pdf.MultiCell(0, 5, tr("Pay online: "+bill.PaymentLink), "", "L", false)
	}

	return output(pdf)
}

// AccountReport renders the accounting view of completed bills together with
// its summary totals.
func (g *Generator) AccountReport(report model.AccountReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, "Account report", "", 1, "C", false, 0, "")
	pdf.SetFont(fontName, "", 11)
	date := report.Date
	if date == "" {
		date = "all dates"
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s, %s", g.issuer, date)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headers := []string{"B/L number", "Customer", "Method", "Completed", "CTN fee", "Service fee", "Total"}
	widths := []float64{38, 62, 30, 40, 32, 32, 33}
	drawTableRow(pdf, tr, headers, widths, true)
	for _, bill := range report.Bills {
		method := "Bank"
		if billing.IsAllinpay(bill) {
			method = model.PaymentMethodAllinpay
		}
		completed := ""
		if bill.CompletedAt != nil {
			completed = formatDate(bill.CompletedAt.In(g.loc))
		}
		drawTableRow(pdf, tr, []string{
			bill.BLNumber,
			bill.CustomerName,
			method,
			completed,
			bill.CTNFee.String(),
			bill.ServiceFee.String(),
			bill.Total().String(),
		}, widths, false)
	}

	pdf.Ln(4)
	pdf.SetFont(fontName, "", 11)
	summary := report.Summary
	lines := []string{
		fmt.Sprintf("Entries: %d", summary.TotalEntries),
		fmt.Sprintf("Total CTN fee: %s", summary.TotalCTNFee),
		fmt.Sprintf("Total service fee: %s", summary.TotalServiceFee),
		fmt.Sprintf("Bank transfer total: %s", summary.BankTotal),
		fmt.Sprintf("Allinpay 85%% total: %s", summary.Allinpay85Total),
		fmt.Sprintf("Reserve total: %s", summary.ReserveTotal),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 6, line, "", 1, "R", false, 0, "")
	}

	return output(pdf)
}

func addBlock(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if isAmountColumn(len(cols), i) {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

// The two-column invoice table has one amount column; the report has three.
func isAmountColumn(cols, i int) bool {
	if cols <= 2 {
		return i == cols-1
	}
	return i >= cols-3
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
