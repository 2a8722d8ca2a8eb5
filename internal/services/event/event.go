// Package event manages the catalog: events, their products and who
// administers or sells for them.
package event

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

type Service struct {
	store  store.Store
	logger *zap.Logger
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

type EventInput struct {
	Name         string
	Description  string
	Street       string
	Cep          string
	Neighborhood string
	Number       string
	City         string
	EventDate    time.Time
	ImageURL     string
}

// EventPatch holds the fields of an event to change. Nil fields are kept.
type EventPatch struct {
	Name         *string
	Description  *string
	Street       *string
	Cep          *string
	Neighborhood *string
	Number       *string
	City         *string
	EventDate    *time.Time
	ImageURL     *string
	Status       *models.EventStatus
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       *int
}

// ProductPatch holds the fields of a product to change. ClearStock makes
// the product unlimited. Status may only be active or inactive; the
// stock-derived statuses are computed.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	ImageURL    *string
	Stock       *int
	ClearStock  bool
	Status      *models.ProductStatus
}

// CreateEvent creates an active event and makes the creator its first
// administrator.
func (s *Service) CreateEvent(ctx context.Context, in EventInput, p authz.Principal) (*models.Event, error) {
	if err := authz.RequireGlobal(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validateEvent(&in); err != nil {
		return nil, err
	}

	event := models.Event{
		Name:         in.Name,
		Description:  in.Description,
		Street:       in.Street,
		Cep:          in.Cep,
		Neighborhood: in.Neighborhood,
		Number:       in.Number,
		City:         in.City,
		EventDate:    in.EventDate,
		ImageURL:     in.ImageURL,
		Status:       models.EventActive,
	}

	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if err := tx.CreateEvent(&event); err != nil {
			return err
		}
		return tx.AddMember(event.ID, p.UserID, models.MemberAdministrator)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", zap.Uint("event_id", event.ID), zap.Uint("by", p.UserID))
	return &event, nil
}

func validateEvent(in *EventInput) error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return apperr.Validation("name", "is required")
	case len(in.Name) > 100:
		return apperr.Validation("name", "must have at most 100 characters")
	case in.EventDate.IsZero():
		return apperr.Validation("event_date", "is required")
	case len(in.Cep) > 9:
		return apperr.Validation("cep", "must have at most 9 characters")
	}
	return nil
}

// GetEvent returns the event with its products.
func (s *Service) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var event *models.Event
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if event, err = tx.GetEvent(id); err != nil {
			return err
		}
		event.Products, err = tx.ListProducts(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns the events where p is an administrator or a
// commissioner.
func (s *Service) ListEvents(ctx context.Context, p authz.Principal) ([]models.Event, error) {
	var events []models.Event
	err := s.store.View(ctx, func(tx store.Tx) error {
		ids, err := tx.MemberEventIDs(p.UserID)
		if err != nil {
			return err
		}
		events, err = tx.ListEvents(ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id uint, patch EventPatch, p authz.Principal) (*models.Event, error) {
	var event *models.Event
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, id, authz.Admin); err != nil {
			return err
		}

		var err error
		if event, err = tx.GetEvent(id); err != nil {
			return err
		}
		in := EventInput{
			Name:         pick(patch.Name, event.Name),
			Description:  pick(patch.Description, event.Description),
			Street:       pick(patch.Street, event.Street),
			Cep:          pick(patch.Cep, event.Cep),
			Neighborhood: pick(patch.Neighborhood, event.Neighborhood),
			Number:       pick(patch.Number, event.Number),
			City:         pick(patch.City, event.City),
			EventDate:    pick(patch.EventDate, event.EventDate),
			ImageURL:     pick(patch.ImageURL, event.ImageURL),
		}
		if err := validateEvent(&in); err != nil {
			return err
		}
		if patch.Status != nil && !patch.Status.Valid() {
			return apperr.Validation("status", "must be one of active, cancelled, completed")
		}

		event.Name, event.Description = in.Name, in.Description
		event.Street, event.Cep, event.Neighborhood = in.Street, in.Cep, in.Neighborhood
		event.Number, event.City = in.Number, in.City
		event.EventDate, event.ImageURL = in.EventDate, in.ImageURL
		event.Status = pick(patch.Status, event.Status)
		return tx.UpdateEvent(event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// UpdateEventStatus moves an event between active, cancelled and
// completed. Only active events accept sales.
func (s *Service) UpdateEventStatus(ctx context.Context, id uint, status models.EventStatus, p authz.Principal) (*models.Event, error) {
	event, err := s.UpdateEvent(ctx, id, EventPatch{Status: &status}, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event status changed",
		zap.Uint("event_id", id),
		zap.String("status", string(status)),
		zap.Uint("by", p.UserID),
	)
	return event, nil
}

// DeleteEvent removes an event with its products and memberships. Events
// that already have sales cannot be deleted.
func (s *Service) DeleteEvent(ctx context.Context, id uint, p authz.Principal) error {
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, id, authz.Admin); err != nil {
			return err
		}
		n, err := tx.CountSalesByEvent(id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("event has sales and cannot be deleted")
		}
		return tx.DeleteEvent(id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("event deleted", zap.Uint("event_id", id), zap.Uint("by", p.UserID))
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, eventID uint, in ProductInput, p authz.Principal) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateProduct(in.Name, in.Price, in.Stock); err != nil {
		return nil, err
	}

	product := models.Product{
		EventID:     eventID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		ImageURL:    in.ImageURL,
		Stock:       in.Stock,
		Status:      stockStatus(in.Stock),
	}

	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Admin); err != nil {
			return err
		}
		return tx.CreateProduct(&product)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product created",
		zap.Uint("product_id", product.ID),
		zap.Uint("event_id", eventID),
		zap.String("price", product.Price.StringFixed(2)),
	)
	return &product, nil
}

// UpdateProduct changes a product. A new price only applies to future
// sales; recorded sales keep their own price.
func (s *Service) UpdateProduct(ctx context.Context, productID uint, patch ProductPatch, p authz.Principal) (*models.Product, error) {
	var product *models.Product
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		current, err := tx.GetProduct(productID)
		if err != nil {
			return err
		}
		if err := authz.Require(tx, p, current.EventID, authz.Admin); err != nil {
			return err
		}

		if product, err = tx.ProductForUpdate(productID); err != nil {
			return err
		}

		name := strings.TrimSpace(pick(patch.Name, product.Name))
		price := pick(patch.Price, product.Price)
		stock := product.Stock
		switch {
		case patch.ClearStock:
			stock = nil
		case patch.Stock != nil:
			v := *patch.Stock
			stock = &v
		}
		if err := validateProduct(name, price, stock); err != nil {
			return err
		}

		inactive := product.Status == models.ProductInactive
		if patch.Status != nil {
			switch *patch.Status {
			case models.ProductActive:
				inactive = false
			case models.ProductInactive:
				inactive = true
			default:
				return apperr.Validation("status", "must be active or inactive")
			}
		}

		product.Name = name
		product.Description = pick(patch.Description, product.Description)
		product.Price = price.Round(2)
		product.ImageURL = pick(patch.ImageURL, product.ImageURL)
		product.Stock = stock
		product.Status = stockStatus(stock)
		if inactive {
			product.Status = models.ProductInactive
		}
		return tx.UpdateProduct(product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func validateProduct(name string, price decimal.Decimal, stock *int) error {
	switch {
	case name == "":
		return apperr.Validation("name", "is required")
	case len(name) > 100:
		return apperr.Validation("name", "must have at most 100 characters")
	case price.IsNegative():
		return apperr.Validation("price", "must not be negative")
	case stock != nil && *stock < 0:
		return apperr.Validation("stock", "must not be negative")
	}
	return nil
}

func stockStatus(stock *int) models.ProductStatus {
	switch {
	case stock == nil:
		return models.ProductUnlimited
	case *stock == 0:
		return models.ProductOutOfStock
	}
	return models.ProductActive
}

func (s *Service) ListProducts(ctx context.Context, eventID uint) ([]models.Product, error) {
	var products []models.Product
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetEvent(eventID); err != nil {
			return err
		}
		var err error
		products, err = tx.ListProducts(eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// AddEventAdministrator grants the user with targetEmail administrator
// membership on the event. The user's global role is not changed.
func (s *Service) AddEventAdministrator(ctx context.Context, eventID uint, targetEmail string, p authz.Principal) (*models.Event, error) {
	return s.addMember(ctx, eventID, targetEmail, models.MemberAdministrator, p)
}

// AddEventCommissioner grants the user with targetEmail commissioner
// membership on the event.
func (s *Service) AddEventCommissioner(ctx context.Context, eventID uint, targetEmail string, p authz.Principal) (*models.Event, error) {
	return s.addMember(ctx, eventID, targetEmail, models.MemberCommissioner, p)
}

func (s *Service) addMember(ctx context.Context, eventID uint, targetEmail string, kind models.MembershipKind, p authz.Principal) (*models.Event, error) {
	var (
		event  *models.Event
		target *models.User
	)
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Admin); err != nil {
			return err
		}

		var err error
		target, err = tx.GetUserByEmail(strings.ToLower(strings.TrimSpace(targetEmail)))
		if err != nil {
			if apperr.IsNotFound(err) {
				return apperr.NotFound("user")
			}
			return err
		}
		if err := tx.AddMember(eventID, target.ID, kind); err != nil {
			return err
		}

		event, err = tx.GetEvent(eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event member added",
		zap.Uint("event_id", eventID),
		zap.Uint("user_id", target.ID),
		zap.String("kind", string(kind)),
		zap.Uint("by", p.UserID),
	)
	return event, nil
}

func pick[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}
