package workflow

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"
	"github.com/warp/paper-supply/inventory"
)

// =============================================================================
// CUSTOMER RESPONSES
// =============================================================================

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"pct":   func(d decimal.Decimal) string { return d.Mul(decimal.NewFromInt(100)).String() + "%" },
}

var responses = template.Must(template.New("responses").Funcs(funcs).Parse(`
{{- define "fulfilled" -}}
Thank you for your order! It was processed on {{ .Order.Date }}.

Items ordered:
{{- range .Order.Lines }}
- {{ .Quantity }} units of {{ .ItemName }}: {{ money .Amount }}
{{- end }}
{{ with .Quote.Discount }}
A {{ pct .Rate }} volume discount saved you {{ money .Amount }}.
{{- end }}
Total amount: {{ money .Order.TotalAmount }}

Thank you for your business!
{{- end }}

{{- define "quote_only" -}}
Thank you for your request. We cannot fill it in full right now.
{{ range .Quote.Lines }}
- {{ .ItemName }} ({{ .Quantity }} units): {{ if .Available }}available, {{ money .DiscountedTotal }}{{ else }}{{ .Reason }}{{ end }}
{{- end }}

{{ .Quote.Explanation }} Please let us know if you would like to adjust your order.
{{- end }}

{{- define "rejected" -}}
We apologize, but we could not process your order: {{ .Reason }}.
Your quote came to {{ money .Quote.TotalAmount }}. Please contact us for more information.
{{- end }}

{{- define "no_items" -}}
I'm sorry, but I couldn't identify any specific paper products in your request. Could you please provide more details about what items and quantities you need?
{{- end }}
`))

// RenderResponse writes the customer-facing text for a processed request.
func RenderResponse(res *Result) string {
	name := string(res.State)
	switch res.State {
	case StateFulfilled, StateQuoteOnly, StateRejected, StateNoItems:
	default:
		return "Thank you for your inquiry. We will process your request and get back to you soon."
	}
	var buf bytes.Buffer
	if err := responses.ExecuteTemplate(&buf, name, res); err != nil {
		return "Thank you for your inquiry. We will process your request and get back to you soon."
	}
	return strings.TrimSpace(buf.String())
}

// OrderSummary is a short plain summary of a completed order.
func OrderSummary(order *inventory.Order) string {
	if order == nil {
		return ""
	}
	var b strings.Builder
	if order.Status != inventory.OrderCompleted {
		b.WriteString("Order Status: " + string(order.Status))
		if order.Reason != "" {
			b.WriteString("\nReason: " + order.Reason)
		}
		return b.String()
	}
	b.WriteString("Order successfully processed on " + order.Date.String())
	b.WriteString("\nTotal amount: $" + order.TotalAmount.StringFixed(2))
	return b.String()
}
