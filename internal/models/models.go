package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCommissioner Role = "commissioner"
	RoleClient       Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCommissioner, RoleClient:
		return true
	}
	return false
}

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventActive, EventCancelled, EventCompleted:
		return true
	}
	return false
}

type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductInactive   ProductStatus = "inactive"
	ProductOutOfStock ProductStatus = "out_of_stock"
	ProductUnlimited  ProductStatus = "unlimited_product"
)

type SaleStatus string

const (
	SalePaid     SaleStatus = "paid"
	SaleCanceled SaleStatus = "canceled"
)

// MembershipKind selects one of the two event membership tables.
type MembershipKind string

const (
	MemberAdministrator MembershipKind = "administrator"
	MemberCommissioner  MembershipKind = "commissioner"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"not null;uniqueIndex"`
	Username     string    `json:"username" gorm:"not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'client'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Event struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	Name         string      `json:"name" gorm:"type:varchar(100);not null;index"`
	Description  string      `json:"description" gorm:"type:text;not null"`
	Street       string      `json:"street"`
	Cep          string      `json:"cep" gorm:"type:varchar(9)"`
	Neighborhood string      `json:"neighborhood"`
	Number       string      `json:"number"`
	City         string      `json:"city"`
	EventDate    time.Time   `json:"eventDate" gorm:"not null"`
	ImageURL     string      `json:"imageUrl"`
	Status       EventStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	Created      time.Time   `json:"created" gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	// Relationships
	Products []Product `json:"products,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// Location formats the address the way it is printed on tickets.
func (e *Event) Location() string {
	return e.Street + ", " + e.Number + " - " + e.City
}

type Product struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	EventID     uint            `json:"eventId" gorm:"not null;index"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null;index"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	ImageURL    string          `json:"imageUrl"`
	Stock       *int            `json:"stock"` // nil means unlimited
	Status      ProductStatus   `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Limited reports whether the product has a finite stock.
func (p *Product) Limited() bool {
	return p.Stock != nil
}

type Sale struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	ProductID     uint            `json:"productId" gorm:"not null;index"`
	SellerID      *uint           `json:"sellerId" gorm:"index"`
	BuyerName     string          `json:"buyerName" gorm:"not null"`
	BuyerEmail    string          `json:"buyerEmail" gorm:"not null"`
	Status        SaleStatus      `json:"status" gorm:"type:varchar(20);not null;default:'paid';index"`
	PaymentMethod string          `json:"paymentMethod" gorm:"not null;default:'cash'"`
	SaleDate      time.Time       `json:"saleDate" gorm:"not null;index"`
	UniqueCode    uuid.UUID       `json:"uniqueCode" gorm:"type:uuid;not null;uniqueIndex"`
	CheckedAt     *time.Time      `json:"checkedAt"`
	CanceledAt    *time.Time      `json:"canceledAt"`
	SalePrice     decimal.Decimal `json:"salePrice" gorm:"type:numeric(12,2);not null"`

	// Relationships
	Product *Product `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	Seller  *User    `json:"-" gorm:"foreignKey:SellerID;constraint:OnDelete:RESTRICT"`
}

// EventAdministrator and EventCommissioner are the explicit join tables
// behind event membership. The composite primary key doubles as the
// lookup index for membership checks.
type EventAdministrator struct {
	EventID   uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time

	Event *Event `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type EventCommissioner struct {
	EventID   uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time

	Event *Event `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Event{},
		&Product{},
		&Sale{},
		&EventAdministrator{},
		&EventCommissioner{},
	)
}
