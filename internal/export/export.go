package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{"Product ID", "Product Name", "Quantity", "Price Per Unit", "Total Price"}

// OrderCSV renders one row per item followed by a total row. Lines are
// separated by "\n" with no trailing newline.
func OrderCSV(o order.Order) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{csvHeader}
	for _, item := range o.Items {
		records = append(records, []string{
			strconv.Itoa(item.ProductID),
			item.Title,
			strconv.Itoa(item.Quantity),
			money(decimal.NewFromFloat(item.Price)),
			money(item.Subtotal()),
		})
	}
	records = append(records, []string{"", "", "", "Total:", money(decimal.NewFromFloat(o.Total))})

	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to write csv: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ReportFilename names a downloaded report, for example
// order-abc123-2024-05-01.csv.
func ReportFilename(o order.Order, ext string, now time.Time) string {
	return fmt.Sprintf("order-%s-%s.%s", o.ID, now.UTC().Format("2006-01-02"), ext)
}

type receiptLine struct {
	Title    string
	Quantity int
	Price    string
	Total    string
}

type receiptData struct {
	ID      string
	Date    string
	Status  order.Status
	Name    string
	Email   string
	Phone   string
	Address string
	Lines   []receiptLine
	Total   string
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Order #{{.ID}}</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
    .report { max-width: 800px; margin: 0 auto; }
    .header { text-align: center; margin-bottom: 30px; }
    .header h1 { margin-bottom: 5px; }
    .customer-info { margin-bottom: 20px; padding: 15px; background-color: #f9f9f9; border-radius: 5px; }
    table { width: 100%; border-collapse: collapse; }
    th, td { padding: 10px; text-align: left; border-bottom: 1px solid #ddd; }
    th { background-color: #f2f2f2; }
    .total-row { font-weight: bold; }
    .footer { margin-top: 30px; text-align: center; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="report">
    <div class="header">
      <h1>Order Receipt</h1>
      <p>Order ID: {{.ID}}</p>
      <p>Date: {{.Date}}</p>
      <p>Status: {{.Status}}</p>
    </div>
    <div class="customer-info">
      <p><strong>Customer:</strong> {{.Name}}</p>
      <p><strong>Email:</strong> {{.Email}}</p>
      {{- if .Phone}}
      <p><strong>Phone:</strong> {{.Phone}}</p>
      {{- end}}
      {{- if .Address}}
      <p><strong>Address:</strong> {{.Address}}</p>
      {{- end}}
    </div>
    <table>
      <thead>
        <tr>
          <th>Product</th>
          <th>Quantity</th>
          <th>Price</th>
          <th>Total</th>
        </tr>
      </thead>
      <tbody>
        {{- range .Lines}}
        <tr>
          <td>{{.Title}}</td>
          <td>{{.Quantity}}</td>
          <td>${{.Price}}</td>
          <td>${{.Total}}</td>
        </tr>
        {{- end}}
        <tr class="total-row">
          <td colspan="3" style="text-align: right;">Total:</td>
          <td>${{.Total}}</td>
        </tr>
      </tbody>
    </table>
    <div class="footer">
      <p>Thank you for your purchase!</p>
      <p>ProductVista</p>
    </div>
  </div>
</body>
</html>
`))

// OrderHTML renders a printable receipt.
func OrderHTML(o order.Order) (string, error) {
	data := receiptData{
		ID:      o.ID,
		Date:    formatDate(o),
		Status:  o.Status,
		Name:    o.CustomerName,
		Email:   o.CustomerEmail,
		Phone:   o.CustomerPhone,
		Address: formatAddress(o.Address),
		Total:   money(decimal.NewFromFloat(o.Total)),
	}
	for _, item := range o.Items {
		data.Lines = append(data.Lines, receiptLine{
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    money(decimal.NewFromFloat(item.Price)),
			Total:    money(item.Subtotal()),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}

func formatDate(o order.Order) string {
	t := o.CreatedAt()
	if t.IsZero() {
		return o.Date
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

func formatAddress(a order.Address) string {
	var parts []string
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
