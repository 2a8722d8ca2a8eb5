package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/mailer"
	"github.com/uaifestas/festas-go/internal/qrcode"
)

//go:embed templates/ticket.html
var templateFS embed.FS

var ticketTemplate = template.Must(template.ParseFS(templateFS, "templates/ticket.html"))

// TemplateData is what templates/ticket.html renders.
type TemplateData struct {
	BuyerName     string
	EventName     string
	ProductName   string
	EventDate     string
	EventLocation string
	ProductPrice  string
	Code          string
}

func NewTemplateData(t Ticket) TemplateData {
	return TemplateData{
		BuyerName:     t.BuyerName,
		EventName:     t.EventName,
		ProductName:   t.ProductName,
		EventDate:     FormatDate(t.EventDate),
		EventLocation: t.EventLocation,
		ProductPrice:  FormatPrice(t.Price),
		Code:          t.Code.String(),
	}
}

// Sender renders a Ticket and hands it to a mailer.
type Sender struct {
	mailer  mailer.Mailer
	subject string
	logger  *zap.Logger
}

func NewSender(m mailer.Mailer, subject string, logger *zap.Logger) *Sender {
	return &Sender{mailer: m, subject: subject, logger: logger}
}

func (s *Sender) Deliver(ctx context.Context, t Ticket) error {
	png, err := qrcode.Render(t.Code.String())
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := ticketTemplate.Execute(&body, NewTemplateData(t)); err != nil {
		return fmt.Errorf("failed to render ticket email: %w", err)
	}

	if err := s.mailer.Send(ctx, mailer.Message{
		To:      t.BuyerEmail,
		Subject: s.subject,
		HTML:    body.String(),
		QRCode:  png,
	}); err != nil {
		return err
	}

	s.logger.Info("ticket email delivered",
		zap.Uint("sale_id", t.SaleID),
		zap.String("buyer_email", t.BuyerEmail),
	)
	return nil
}
