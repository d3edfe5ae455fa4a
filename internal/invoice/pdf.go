package invoice

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/notification"
)

// PDFRenderer lays out a one-page A4 invoice for a booking.
type PDFRenderer struct {
	company string
	now     func() time.Time
}

// NewPDFRenderer creates a new PDFRenderer issuing invoices under company.
func NewPDFRenderer(company string) *PDFRenderer {
	return &PDFRenderer{company: company, now: time.Now}
}

// Render produces the PDF bytes for b.
func (r *PDFRenderer) Render(b application.BookingDTO) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+b.ID.String(), true)
	pdf.SetCreationDate(r.now().UTC())
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.company), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "INVOICE", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Invoice no: "+b.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued: "+r.now().UTC().Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Customer")
	line(pdf, tr, "Name", b.CustomerInfo.Name)
	line(pdf, tr, "Email", b.CustomerInfo.Email)
	line(pdf, tr, "Phone", b.CustomerInfo.Phone)
	if b.CustomerInfo.Address != "" {
		line(pdf, tr, "Address", b.CustomerInfo.Address)
	}
	pdf.Ln(4)

	section(pdf, "Tour")
	title := b.TourID.String()
	unitPrice := int64(0)
	if b.Tour != nil {
		title = b.Tour.Title
		unitPrice = b.Tour.PriceCents
	}
	line(pdf, tr, "Tour", title)
	line(pdf, tr, "Start date", b.StartDate.Format("02 Jan 2006"))
	if b.SpecialRequests != "" {
		line(pdf, tr, "Requests", b.SpecialRequests)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	for _, h := range []struct {
		text  string
		width float64
	}{{"Description", 80}, {"Unit price", 40}, {"People", 25}, {"Amount", 45}} {
		pdf.CellFormat(h.width, 8, h.text, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(80, 8, tr(title), "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, money(unitPrice, b.Currency), "1", 0, "R", false, 0, "")
	pdf.CellFormat(25, 8, fmt.Sprintf("%d", b.NumberOfPeople), "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 8, money(b.TotalPriceCents+b.DiscountAmountCents, b.Currency), "1", 1, "R", false, 0, "")

	totals := []struct {
		label string
		value string
	}{
		{"Discount", money(-b.DiscountAmountCents, b.Currency)},
		{"Total", money(b.TotalPriceCents, b.Currency)},
		{"Paid", money(b.AmountPaidCents, b.Currency)},
	}
	for _, row := range totals {
		pdf.CellFormat(145, 8, row.label, "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 8, row.value, "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	line(pdf, tr, "Payment method", b.PaymentMethod)
	line(pdf, tr, "Payment status", b.PaymentStatus)
	line(pdf, tr, "Booking status", b.Status)
	if b.TransactionID != "" {
		line(pdf, tr, "Transaction", b.TransactionID)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func line(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.CellFormat(40, 6, label+":", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func money(cents int64, currency string) string {
	return notification.FormatMoney(cents, currency)
}
