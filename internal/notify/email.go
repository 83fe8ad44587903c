package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/qr"
	"gopkg.in/gomail.v2"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// OrderReader loads the committed order being confirmed.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type EmailSettings struct {
	From string
	// TrackingURL is formatted with the order id and encoded in the QR code.
	TrackingURL string
}

// EmailNotifier mails an order confirmation to the address on the order.
type EmailNotifier struct {
	mailer   Mailer
	orders   OrderReader
	settings EmailSettings
	tmpl     *template.Template
}

func NewEmailNotifier(mailer Mailer, orders OrderReader, settings EmailSettings) *EmailNotifier {
	return &EmailNotifier{
		mailer:   mailer,
		orders:   orders,
		settings: settings,
		tmpl:     template.Must(template.New("order_confirmation").Funcs(templateFuncs).Parse(confirmationTemplate)),
	}
}

type confirmationData struct {
	OrderID       string
	CustomerName  string
	OrderDate     string
	Items         []domain.OrderItem
	Subtotal      int64
	Shipping      int64
	Discount      int64
	Total         int64
	PaymentMethod domain.PaymentMethod
	PaymentStatus domain.PaymentStatus
	Address       string
	HasQR         bool
}

func (e *EmailNotifier) Notify(ctx context.Context, _, orderID string) error {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s for email: %w", orderID, err)
	}
	if order.Email == "" {
		return nil
	}

	var qrPNG []byte
	if e.settings.TrackingURL != "" {
		qrPNG, err = qr.PNG(fmt.Sprintf(e.settings.TrackingURL, order.ID), 300)
		if err != nil {
			qrPNG = nil
		}
	}

	var body bytes.Buffer
	err = e.tmpl.Execute(&body, confirmationData{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		OrderDate:     order.OrderDate.In(vietnamTime).Format("15:04 - 02/01/2006"),
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		Shipping:      order.Shipping,
		Discount:      order.Discount,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Address:       order.Address,
		HasQR:         qrPNG != nil,
	})
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.settings.From)
	m.SetHeader("To", order.Email)
	m.SetHeader("Subject", fmt.Sprintf("Xác nhận đơn hàng #%s", order.ID))
	m.SetBody("text/html", body.String())
	if qrPNG != nil {
		m.Embed("order_qr.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qrPNG)
			return err
		}), gomail.SetHeader(map[string][]string{
			"Content-Type":        {"image/png"},
			"Content-ID":          {"<order_qr>"},
			"Content-Disposition": {"inline"},
		}))
	}

	if err := e.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("send confirmation email to %s: %w", order.Email, err)
	}
	return nil
}

var vietnamTime = time.FixedZone("ICT", 7*60*60)

var templateFuncs = template.FuncMap{
	"vnd":       FormatVND,
	"lineTotal": lineTotal,
}

func lineTotal(it domain.OrderItem) int64 {
	return it.LineTotal()
}

// FormatVND renders an amount with dot thousands separators, e.g. 1.250.000₫.
func FormatVND(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return sign + string(out) + "₫"
}

const confirmationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif">
<h2>Cảm ơn {{.CustomerName}} đã đặt hàng!</h2>
<p>Mã đơn hàng: <strong>{{.OrderID}}</strong><br>Thời gian: {{.OrderDate}}</p>
<table cellpadding="6" style="border-collapse: collapse">
<tr><th align="left">Sản phẩm</th><th>SL</th><th align="right">Thành tiền</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{lineTotal . | vnd}}</td></tr>
{{end}}</table>
<p>Tạm tính: {{vnd .Subtotal}}<br>
Phí vận chuyển: {{vnd .Shipping}}<br>
{{if gt .Discount 0}}Giảm giá: -{{vnd .Discount}}<br>{{end}}
<strong>Tổng cộng: {{vnd .Total}}</strong></p>
<p>Thanh toán: {{.PaymentMethod}} ({{.PaymentStatus}})<br>Giao đến: {{.Address}}</p>
{{if .HasQR}}<p><img src="cid:order_qr" alt="QR theo dõi đơn hàng" width="200"></p>{{end}}
</body>
</html>`
