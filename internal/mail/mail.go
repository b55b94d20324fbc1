// Package mail sends transactional email for placed orders.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrNoRecipient = errors.New("order has no billing email")

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
}

// Nop drops every message. Used when no mail provider is configured.
type Nop struct{}

func (Nop) SendOrderConfirmation(context.Context, domain.Order) error { return nil }

type SendGrid struct {
	apiKey string
	host   string
	from   *sgmail.Email
}

// NewSendGrid creates a mailer. An empty host uses the public SendGrid API.
func NewSendGrid(apiKey, host, fromAddress, fromName string) *SendGrid {
	return &SendGrid{
		apiKey: apiKey,
		host:   host,
		from:   sgmail.NewEmail(fromName, fromAddress),
	}
}

func (s *SendGrid) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	to := strings.TrimSpace(order.Billing.Email)
	if to == "" {
		return ErrNoRecipient
	}

	plain, html, err := renderConfirmation(order)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(order.Billing.FirstName + " " + order.Billing.LastName)
	subject := fmt.Sprintf("Your order %s is confirmed", order.Number)
	message := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail(name, to), plain, html)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("send confirmation for %s: %w", order.Number, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send confirmation for %s: status %d: %s", order.Number, resp.StatusCode, resp.Body)
	}
	return nil
}

type confirmationView struct {
	domain.Order
	Name string
}

const plainConfirmation = `Hi {{.Name}},

Thank you for your order {{.Number}}.
{{range .Items}}
- {{.Title}}{{if ne .Variant "Default Title"}} ({{.Variant}}){{end}} x {{.Quantity}} @ {{.Price}}{{end}}

Subtotal: {{printf "%.2f" .Totals.Subtotal}}
Shipping: {{printf "%.2f" .Totals.Shipping}}
Handling: {{printf "%.2f" .Totals.HandlingFee}}
{{- if .Coupon}}
Discount ({{.Coupon.Code}}): -{{printf "%.2f" .Totals.Discount}}
{{- end}}
Total: {{printf "%.2f" .Totals.Total}}
`

const htmlConfirmation = `<p>Hi {{.Name}},</p>
<p>Thank you for your order <strong>{{.Number}}</strong>.</p>
<table>
{{range .Items}}<tr><td>{{.Title}}{{if ne .Variant "Default Title"}} ({{.Variant}}){{end}}</td><td>{{.Quantity}}</td><td>{{.Price}}</td></tr>
{{end}}</table>
<p>Subtotal: {{printf "%.2f" .Totals.Subtotal}}<br>
Shipping: {{printf "%.2f" .Totals.Shipping}}<br>
Handling: {{printf "%.2f" .Totals.HandlingFee}}<br>
{{if .Coupon}}Discount ({{.Coupon.Code}}): -{{printf "%.2f" .Totals.Discount}}<br>
{{end}}<strong>Total: {{printf "%.2f" .Totals.Total}}</strong></p>
`

var (
	plainTmpl = texttemplate.Must(texttemplate.New("plain").Parse(plainConfirmation))
	htmlTmpl  = template.Must(template.New("html").Parse(htmlConfirmation))
)

func renderConfirmation(order domain.Order) (string, string, error) {
	view := confirmationView{Order: order, Name: order.Billing.FirstName}
	if view.Name == "" {
		view.Name = "there"
	}

	var plain, html bytes.Buffer
	if err := plainTmpl.Execute(&plain, view); err != nil {
		return "", "", fmt.Errorf("render plain confirmation: %w", err)
	}
	if err := htmlTmpl.Execute(&html, view); err != nil {
		return "", "", fmt.Errorf("render html confirmation: %w", err)
	}
	return plain.String(), html.String(), nil
}
