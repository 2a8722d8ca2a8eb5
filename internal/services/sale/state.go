package sale

import (
	"time"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
)

// A sale starts paid and moves at most once: to canceled, or to checked
// in. Neither terminal state can reach the other.

// CheckInTransition marks s as checked in at now.
func CheckInTransition(s *models.Sale, now time.Time) error {
	if s.Status == models.SaleCanceled {
		return apperr.InvalidState("sale is canceled and cannot be checked in")
	}
	if s.CheckedAt != nil {
		return apperr.InvalidState("sale already checked in")
	}
	s.CheckedAt = &now
	return nil
}

// CancelTransition marks s as canceled at now.
func CancelTransition(s *models.Sale, now time.Time) error {
	if s.Status == models.SaleCanceled {
		return apperr.InvalidState("sale already canceled")
	}
	if s.CheckedAt != nil {
		return apperr.InvalidState("checked-in sales cannot be canceled")
	}
	s.Status = models.SaleCanceled
	s.CanceledAt = &now
	return nil
}

// requireNotCanceled rejects ticket mail for a sale that can no longer be
// redeemed.
func requireNotCanceled(s *models.Sale) error {
	if s.Status == models.SaleCanceled {
		return apperr.InvalidState("sale is canceled")
	}
	return nil
}

// restock returns one unit of a canceled sale to its product.
func restock(p *models.Product) {
	if p.Stock == nil {
		return
	}
	*p.Stock++
	if p.Status == models.ProductOutOfStock {
		p.Status = models.ProductActive
	}
}

// takeUnit removes one unit from a limited product.
func takeUnit(p *models.Product) {
	if p.Stock == nil {
		return
	}
	*p.Stock--
	if *p.Stock == 0 {
		p.Status = models.ProductOutOfStock
	}
}
