// Package sale records ticket sales and drives their lifecycle.
package sale

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/notify"
	"github.com/uaifestas/festas-go/internal/store"
)

const (
	defaultPaymentMethod = "cash"
	minBuyerNameLength   = 2
)

type Engine struct {
	store    store.Store
	notifier notify.Dispatcher
	logger   *zap.Logger
	validate *validator.Validate

	now     func() time.Time
	newCode func() uuid.UUID
}

func NewEngine(st store.Store, notifier notify.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		notifier: notifier,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		newCode:  uuid.New,
	}
}

type CreateInput struct {
	ProductID  uint
	BuyerName  string
	BuyerEmail string
	SellerID   *uint
}

type ContactInput struct {
	BuyerName  *string
	BuyerEmail *string
}

// Result is a sale plus a warning set when the buyer email could not be
// queued. The sale itself is committed either way.
type Result struct {
	Sale    *models.Sale `json:"sale"`
	Warning string       `json:"warning,omitempty"`
}

type ListInput struct {
	EventID   *uint
	ProductID *uint
	SellerID  *uint
	Offset    int
	Limit     int
}

// CreateSale sells one unit of a product. Checks run in a fixed order
// and the first failure wins.
func (e *Engine) CreateSale(ctx context.Context, in CreateInput) (*Result, error) {
	var (
		sale   models.Sale
		ticket notify.Ticket
	)

	err := e.store.Tx(ctx, func(tx store.Tx) error {
		product, err := tx.ProductForUpdate(in.ProductID)
		if err != nil {
			return err
		}

		event, err := tx.GetEvent(product.EventID)
		if err != nil {
			return err
		}
		if event.Status != models.EventActive {
			return apperr.InvalidState("event not active")
		}
		if product.Status == models.ProductInactive {
			return apperr.InvalidState("product not available")
		}
		if product.Stock != nil && *product.Stock <= 0 {
			return apperr.ErrOutOfStock
		}

		if in.SellerID != nil {
			if err := e.checkSeller(tx, *in.SellerID, event.ID); err != nil {
				return err
			}
		}

		name, email, err := e.normalizeBuyer(in.BuyerName, in.BuyerEmail)
		if err != nil {
			return err
		}

		if product.Stock != nil {
			takeUnit(product)
			if err := tx.UpdateProduct(product); err != nil {
				return err
			}
		}

		sale = models.Sale{
			ProductID:     product.ID,
			SellerID:      in.SellerID,
			BuyerName:     name,
			BuyerEmail:    email,
			Status:        models.SalePaid,
			PaymentMethod: defaultPaymentMethod,
			SaleDate:      e.now(),
			UniqueCode:    e.newCode(),
			SalePrice:     product.Price,
		}
		if err := tx.CreateSale(&sale); err != nil {
			return err
		}

		ticket = notify.NewTicket(&sale, product, event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("sale created",
		zap.Uint("sale_id", sale.ID),
		zap.Uint("product_id", sale.ProductID),
		zap.String("unique_code", sale.UniqueCode.String()),
	)

	return &Result{Sale: &sale, Warning: e.dispatch(ctx, ticket)}, nil
}

func (e *Engine) checkSeller(tx store.Tx, sellerID, eventID uint) error {
	seller, err := tx.GetUser(sellerID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NotFound("seller")
		}
		return err
	}

	level, err := authz.Resolve(tx, authz.Principal{UserID: seller.ID, Role: seller.Role}, eventID)
	if err != nil {
		return err
	}
	if level < authz.Commissioner {
		return apperr.Forbidden("seller is not authorized to sell for this event")
	}
	return nil
}

func (e *Engine) normalizeBuyer(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < minBuyerNameLength {
		return "", "", apperr.Validation("buyer_name", "must have at least 2 characters")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := e.validate.Var(email, "required,email"); err != nil {
		return "", "", apperr.Validation("buyer_email", "must be a valid email address")
	}
	return name, email, nil
}

// dispatch hands the ticket to the notifier and turns a failure into a
// warning for the caller.
func (e *Engine) dispatch(ctx context.Context, t notify.Ticket) string {
	if err := e.notifier.Dispatch(ctx, t); err != nil {
		e.logger.Warn("failed to dispatch ticket email",
			zap.Uint("sale_id", t.SaleID),
			zap.Error(err),
		)
		return "sale recorded but the confirmation email could not be sent"
	}
	return ""
}

// CheckIn redeems a ticket by its code.
func (e *Engine) CheckIn(ctx context.Context, code uuid.UUID, p authz.Principal) (*models.Sale, error) {
	var sale *models.Sale

	err := e.store.Tx(ctx, func(tx store.Tx) error {
		found, err := tx.GetSaleByCode(code)
		if err != nil {
			return err
		}
		if err := e.requireOnSale(tx, found, p, authz.Commissioner); err != nil {
			return err
		}

		sale, err = tx.SaleForUpdate(found.ID)
		if err != nil {
			return err
		}
		if err := CheckInTransition(sale, e.now()); err != nil {
			return err
		}
		return tx.UpdateSale(sale)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("sale checked in", zap.Uint("sale_id", sale.ID), zap.Uint("by", p.UserID))
	return sale, nil
}

// CancelSale cancels a paid sale and returns its unit to stock.
func (e *Engine) CancelSale(ctx context.Context, saleID uint, p authz.Principal) (*models.Sale, error) {
	var sale *models.Sale

	err := e.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		sale, err = tx.SaleForUpdate(saleID)
		if err != nil {
			return err
		}
		if err := e.requireOnSale(tx, sale, p, authz.Admin); err != nil {
			return err
		}
		if err := CancelTransition(sale, e.now()); err != nil {
			return err
		}
		if err := tx.UpdateSale(sale); err != nil {
			return err
		}

		product, err := tx.ProductForUpdate(sale.ProductID)
		if err != nil {
			return err
		}
		if product.Stock == nil {
			return nil
		}
		restock(product)
		return tx.UpdateProduct(product)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("sale canceled", zap.Uint("sale_id", sale.ID), zap.Uint("by", p.UserID))
	return sale, nil
}

// ResendNotification sends the ticket email again.
func (e *Engine) ResendNotification(ctx context.Context, saleID uint, p authz.Principal) (*Result, error) {
	var (
		sale   *models.Sale
		ticket notify.Ticket
	)

	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		sale, err = tx.GetSale(saleID)
		if err != nil {
			return err
		}
		if err := e.requireOnSale(tx, sale, p, authz.Commissioner); err != nil {
			return err
		}
		if err := requireNotCanceled(sale); err != nil {
			return err
		}
		ticket, err = ticketFor(tx, sale)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{Sale: sale, Warning: e.dispatch(ctx, ticket)}, nil
}

// UpdateBuyerContact corrects the buyer's name or email and sends the
// ticket to the updated address.
func (e *Engine) UpdateBuyerContact(ctx context.Context, saleID uint, in ContactInput, p authz.Principal) (*Result, error) {
	var (
		sale   *models.Sale
		ticket notify.Ticket
	)

	err := e.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		sale, err = tx.SaleForUpdate(saleID)
		if err != nil {
			return err
		}
		if err := e.requireOnSale(tx, sale, p, authz.Commissioner); err != nil {
			return err
		}
		if err := requireNotCanceled(sale); err != nil {
			return err
		}

		name, email := sale.BuyerName, sale.BuyerEmail
		if in.BuyerName != nil {
			name = *in.BuyerName
		}
		if in.BuyerEmail != nil {
			email = *in.BuyerEmail
		}
		sale.BuyerName, sale.BuyerEmail, err = e.normalizeBuyer(name, email)
		if err != nil {
			return err
		}
		if err := tx.UpdateSale(sale); err != nil {
			return err
		}

		ticket, err = ticketFor(tx, sale)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{Sale: sale, Warning: e.dispatch(ctx, ticket)}, nil
}

func (e *Engine) GetSale(ctx context.Context, saleID uint, p authz.Principal) (*models.Sale, error) {
	var sale *models.Sale
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		if sale, err = tx.GetSale(saleID); err != nil {
			return err
		}
		return e.requireOnSale(tx, sale, p, authz.Commissioner)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (e *Engine) GetSaleByCode(ctx context.Context, code uuid.UUID, p authz.Principal) (*models.Sale, error) {
	var sale *models.Sale
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		if sale, err = tx.GetSaleByCode(code); err != nil {
			return err
		}
		return e.requireOnSale(tx, sale, p, authz.Commissioner)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales lists sales newest first. Without an event filter only
// events where p is a member are visible.
func (e *Engine) ListSales(ctx context.Context, in ListInput, p authz.Principal) ([]models.Sale, error) {
	filter := store.SaleFilter{
		EventID:   in.EventID,
		ProductID: in.ProductID,
		SellerID:  in.SellerID,
		Offset:    in.Offset,
		Limit:     store.ClampLimit(in.Limit),
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var sales []models.Sale
	err := e.store.View(ctx, func(tx store.Tx) error {
		if in.EventID != nil {
			if err := authz.Require(tx, p, *in.EventID, authz.Commissioner); err != nil {
				return err
			}
		} else {
			ids, err := tx.MemberEventIDs(p.UserID)
			if err != nil {
				return err
			}
			filter.EventIDs = ids
		}

		var err error
		sales, err = tx.ListSales(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (e *Engine) requireOnSale(tx store.Tx, s *models.Sale, p authz.Principal, minimum authz.Level) error {
	product, err := tx.GetProduct(s.ProductID)
	if err != nil {
		return err
	}
	return authz.Require(tx, p, product.EventID, minimum)
}

func ticketFor(tx store.Tx, s *models.Sale) (notify.Ticket, error) {
	product, err := tx.GetProduct(s.ProductID)
	if err != nil {
		return notify.Ticket{}, err
	}
	event, err := tx.GetEvent(product.EventID)
	if err != nil {
		return notify.Ticket{}, err
	}
	return notify.NewTicket(s, product, event), nil
}
