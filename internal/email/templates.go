package email

import (
	"html/template"
	"strings"

	"github.com/example/ec-wallet-shop/internal/model"
	"github.com/shopspring/decimal"
)

const layout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">{{.Heading}}</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">{{.Intro}}</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		</div>
{{if .Items}}
		<h2 style="font-size: 18px; border-bottom: 2px solid #667eea; padding-bottom: 10px;">Items</h2>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Product</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Unit price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
{{range .Items}}				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.UnitPrice}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.Subtotal}}</td>
				</tr>
{{end}}			</tbody>
		</table>
{{end}}
		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">{{.TotalLabel}}</span>
			<span style="font-size: 24px; font-weight: bold; color: #667eea; margin-left: 10px;">{{.Total}}</span>
		</div>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This email was sent automatically. Contact support if you have any questions.
		</p>
	</div>
</body>
</html>`

var page = template.Must(template.New("email").Parse(layout))

type itemRow struct {
	Name      string
	Quantity  int
	UnitPrice string
	Subtotal  string
}

type pageData struct {
	Heading    string
	Intro      string
	OrderID    string
	Items      []itemRow
	TotalLabel string
	Total      string
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderID string, total decimal.Decimal, items []model.OrderItem) (string, error) {
	rows := make([]itemRow, len(items))
	for i, item := range items {
		name := item.ProductName
		if name == "" {
			name = item.ProductID
		}
		rows[i] = itemRow{
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: formatAmount(item.UnitPrice),
			Subtotal:  formatAmount(item.TotalPrice),
		}
	}
	return render(pageData{
		Heading:    "Thank you for your order",
		Intro:      "Your order has been placed and paid from your wallet.",
		OrderID:    orderID,
		Items:      rows,
		TotalLabel: "Total",
		Total:      formatAmount(total),
	})
}

var statusIntro = map[model.OrderStatus]string{
	model.OrderShipped:   "Good news: your order is on its way.",
	model.OrderDelivered: "Your order has been delivered. We hope you enjoy it.",
	model.OrderCancelled: "Your order has been cancelled.",
	model.OrderRefunded:  "Your order has been refunded.",
}

// BuildStatusUpdateBody builds the HTML body for a status change email.
func BuildStatusUpdateBody(orderID string, status model.OrderStatus, total decimal.Decimal, refunded bool) (string, error) {
	intro, ok := statusIntro[status]
	if !ok {
		intro = "Your order status changed to " + string(status) + "."
	}
	label := "Order total"
	if refunded {
		intro += " The amount below was credited back to your wallet."
		label = "Refunded to wallet"
	}
	return render(pageData{
		Heading:    "Order " + string(status),
		Intro:      intro,
		OrderID:    orderID,
		TotalLabel: label,
		Total:      formatAmount(total),
	})
}

func render(data pageData) (string, error) {
	var b strings.Builder
	if err := page.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// formatAmount renders two decimals with comma separators, e.g. 1,234.50.
func formatAmount(d decimal.Decimal) string {
	str := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, frac, _ := strings.Cut(str, ".")
	if len(intPart) <= 3 {
		return sign + intPart + "." + frac
	}

	var result strings.Builder
	remainder := len(intPart) % 3
	if remainder > 0 {
		result.WriteString(intPart[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(intPart); i += 3 {
		result.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			result.WriteString(",")
		}
	}
	return sign + result.String() + "." + frac
}
