// Package notify delivers the buyer's ticket email after a sale commits.
//
// The sale engine hands a Ticket to a Dispatcher. Pool delivers it from
// in-process workers; Queue pushes it to Redis for cmd/notifier-service.
// Neither retries a failed delivery.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uaifestas/festas-go/internal/models"
)

var ErrQueueFull = errors.New("notification queue is full")

// Ticket is a self-contained snapshot of everything the email needs.
type Ticket struct {
	SaleID        uint            `json:"sale_id"`
	Code          uuid.UUID       `json:"unique_code"`
	BuyerName     string          `json:"buyer_name"`
	BuyerEmail    string          `json:"buyer_email"`
	EventName     string          `json:"event_name"`
	ProductName   string          `json:"product_name"`
	EventDate     time.Time       `json:"event_date"`
	EventLocation string          `json:"event_location"`
	Price         decimal.Decimal `json:"product_price"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, t Ticket) error
}

// NewTicket snapshots a sale with its product and event. The price is
// the sale's own price, not the product's current one.
func NewTicket(s *models.Sale, p *models.Product, e *models.Event) Ticket {
	return Ticket{
		SaleID:        s.ID,
		Code:          s.UniqueCode,
		BuyerName:     s.BuyerName,
		BuyerEmail:    s.BuyerEmail,
		EventName:     e.Name,
		ProductName:   p.Name,
		EventDate:     e.EventDate,
		EventLocation: e.Location(),
		Price:         s.SalePrice,
	}
}

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FormatDate renders t as "02 de janeiro de 2006 às 15:04".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d às %02d:%02d",
		t.Day(), months[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// FormatPrice renders d as "R$ 1.234,50".
func FormatPrice(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), cents)
}
