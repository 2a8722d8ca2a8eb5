// Package store declares the persistence boundary of the sales core.
//
// Every mutation happens inside Store.Tx. Implementations guarantee that
// ProductForUpdate and SaleForUpdate hold the row until the transaction
// ends, so two transactions locking the same row run one after the other.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uaifestas/festas-go/internal/models"
)

const (
	DefaultSaleLimit = 100
	MaxSaleLimit     = 500
)

type Store interface {
	// Tx runs fn in a read-write transaction. A non-nil error from fn
	// rolls everything back and is returned unchanged.
	Tx(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction that sees one snapshot.
	View(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	CreateUser(u *models.User) error
	GetUser(id uint) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	// GetUserByLogin matches login against username or email.
	GetUserByLogin(login string) (*models.User, error)
	DeleteUser(id uint) error
	CountSalesBySeller(userID uint) (int64, error)

	CreateEvent(e *models.Event) error
	GetEvent(id uint) (*models.Event, error)
	UpdateEvent(e *models.Event) error
	DeleteEvent(id uint) error
	ListEvents(ids []uint) ([]models.Event, error)
	SearchEvents(q EventQuery) ([]models.Event, error)
	CountSalesByEvent(eventID uint) (int64, error)

	// AddMember is idempotent.
	AddMember(eventID, userID uint, kind models.MembershipKind) error
	IsMember(eventID, userID uint, kind models.MembershipKind) (bool, error)
	// MemberEventIDs lists every event where userID holds any membership.
	MemberEventIDs(userID uint) ([]uint, error)

	CreateProduct(p *models.Product) error
	GetProduct(id uint) (*models.Product, error)
	ProductForUpdate(id uint) (*models.Product, error)
	UpdateProduct(p *models.Product) error
	ListProducts(eventID uint) ([]models.Product, error)

	CreateSale(s *models.Sale) error
	GetSale(id uint) (*models.Sale, error)
	GetSaleByCode(code uuid.UUID) (*models.Sale, error)
	SaleForUpdate(id uint) (*models.Sale, error)
	UpdateSale(s *models.Sale) error
	ListSales(f SaleFilter) ([]models.Sale, error)

	SaleTotals(eventID uint, w Window) (SaleTotals, error)
	SellerTotals(eventID uint, w Window, sellerID *uint) ([]SellerTotals, error)
	ProductTotals(eventID uint) ([]ProductTotals, error)
	EventTotals(eventID uint) (EventTotals, error)
}

// SaleFilter narrows ListSales. A nil EventIDs means no membership
// restriction; an empty non-nil EventIDs matches nothing.
type SaleFilter struct {
	EventIDs  []uint
	EventID   *uint
	ProductID *uint
	SellerID  *uint
	Offset    int
	Limit     int
}

// EventQuery narrows SearchEvents. Term matches name or description and
// City matches the city, both case-insensitively. A non-zero Day keeps
// events dated on that calendar day in its location.
type EventQuery struct {
	Term   string
	City   string
	Day    time.Time
	Status models.EventStatus
	Limit  int
}

// Window is an inclusive sale_date range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

type SaleTotals struct {
	TotalSales    int64
	TotalRevenue  decimal.Decimal
	TotalCanceled int64
}

type SellerTotals struct {
	SellerID      uint
	SellerName    string
	TotalSales    int64
	TotalRevenue  decimal.Decimal
	TotalCanceled int64
}

type ProductTotals struct {
	ProductID      uint
	ProductName    string
	StockRemaining *int
	TotalSales     int64
	TotalRevenue   decimal.Decimal
}

type EventTotals struct {
	TotalProducts        int64
	TotalSellers         int64
	TotalSales           int64
	TotalRevenue         decimal.Decimal
	LastSaleDate         *time.Time
	LastCancellationDate *time.Time
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSaleLimit
	case limit > MaxSaleLimit:
		return MaxSaleLimit
	}
	return limit
}
