package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

const layoutHTML = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{template "heading" .}}</h2>
<p>Hi {{.CustomerName}},</p>
{{template "content" .}}
<table cellpadding="4">
<tr><td>Booking</td><td>{{.BookingID}}</td></tr>
<tr><td>Tour</td><td>{{.TourTitle}}</td></tr>
<tr><td>Start date</td><td>{{date .StartDate}}</td></tr>
<tr><td>People</td><td>{{.NumberOfPeople}}</td></tr>
<tr><td>Total</td><td>{{money .TotalPriceCents .Currency}}</td></tr>
</table>
<p>Motobike Tours</p>
</body></html>`

var funcs = template.FuncMap{
	"money": FormatMoney,
	"date":  func(t time.Time) string { return t.Format("02 Jan 2006") },
}

var templates = map[Kind]emailTemplate{
	BookingConfirmed: mustTemplate("Your booking is confirmed",
		`{{define "heading"}}Booking confirmed{{end}}
{{define "content"}}<p>Your tour booking has been confirmed. See you on the road!</p>{{end}}`),
	BookingCancelled: mustTemplate("Your booking has been cancelled",
		`{{define "heading"}}Booking cancelled{{end}}
{{define "content"}}<p>Your booking has been cancelled. If this was unexpected, please contact us.</p>{{end}}`),
	PaymentSucceeded: mustTemplate("Payment received",
		`{{define "heading"}}Payment received{{end}}
{{define "content"}}<p>We received your payment of {{money .AmountPaidCents .Currency}}{{if .TransactionID}} (transaction {{.TransactionID}}){{end}}.</p>{{end}}`),
}

func mustTemplate(subject, blocks string) emailTemplate {
	t := template.Must(template.New("layout").Funcs(funcs).Parse(layoutHTML))
	template.Must(t.Parse(blocks))
	return emailTemplate{subject: subject, body: t}
}

// Render returns the subject and HTML body for a notification.
func Render(kind Kind, b Booking) (string, string, error) {
	tpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification %q", kind)
	}
	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, b); err != nil {
		return "", "", fmt.Errorf("failed to render %s email: %w", kind, err)
	}
	return tpl.subject, buf.String(), nil
}

// FormatMoney renders a minor-unit amount, e.g. 150000 VND -> "1,500.00 VND".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := cents / 100
	s := fmt.Sprintf("%d", units)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return fmt.Sprintf("%s%s.%02d %s", sign, s, cents%100, currency)
}
