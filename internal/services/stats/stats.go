// Package stats computes the event dashboard aggregates. Every read runs
// in one read-only transaction so related figures share a snapshot.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

type OrderBy string

const (
	OrderBySales   OrderBy = "sales"
	OrderByRevenue OrderBy = "revenue"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

type Statistics struct {
	TotalSales       int64           `json:"total_sales"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	AvgSaleValue     decimal.Decimal `json:"avg_sale_value"`
	TotalCanceled    int64           `json:"total_canceled"`
	CancellationRate float64         `json:"cancellation_rate"`
}

type SellerStat struct {
	SellerID         uint            `json:"seller_id"`
	SellerName       string          `json:"seller_name"`
	TotalSales       int64           `json:"total_sales"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalCanceled    int64           `json:"total_canceled"`
	CancellationRate float64         `json:"cancellation_rate"`
}

type ProductStat struct {
	ProductID           uint            `json:"product_id"`
	ProductName         string          `json:"product_name"`
	TotalSales          int64           `json:"total_sales"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	AverageTicket       decimal.Decimal `json:"average_ticket"`
	PercentageOfSales   float64         `json:"percentage_of_sales"`
	PercentageOfRevenue float64         `json:"percentage_of_revenue"`
	StockRemaining      *int            `json:"stock_remaining"`
}

type EventSummary struct {
	EventID              uint               `json:"event_id"`
	EventName            string             `json:"event_name"`
	EventStatus          models.EventStatus `json:"event_status"`
	EventDate            time.Time          `json:"event_date"`
	Created              time.Time          `json:"created"`
	ImageURL             string             `json:"image_url,omitempty"`
	TotalProducts        int64              `json:"total_products"`
	TotalSellers         int64              `json:"total_sellers"`
	TotalSales           int64              `json:"total_sales"`
	TotalRevenue         decimal.Decimal    `json:"total_revenue"`
	AverageTicket        decimal.Decimal    `json:"average_ticket"`
	LastSaleDate         *time.Time         `json:"last_sale_date"`
	LastCancellationDate *time.Time         `json:"last_cancellation_date"`
}

// GetStatistics summarizes the event's sales dated inside w.
func (s *Service) GetStatistics(ctx context.Context, eventID uint, w store.Window, p authz.Principal) (*Statistics, error) {
	var totals store.SaleTotals
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Commissioner); err != nil {
			return err
		}
		var err error
		totals, err = tx.SaleTotals(eventID, w)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Statistics{
		TotalSales:       totals.TotalSales,
		TotalRevenue:     totals.TotalRevenue,
		AvgSaleValue:     average(totals.TotalRevenue, totals.TotalSales),
		TotalCanceled:    totals.TotalCanceled,
		CancellationRate: cancellationRate(totals.TotalSales, totals.TotalCanceled),
	}, nil
}

// GetSellerStatistics groups the window's sales by seller of record,
// highest revenue first. Sales without a seller are left out.
func (s *Service) GetSellerStatistics(ctx context.Context, eventID uint, w store.Window, p authz.Principal, sellerID *uint) ([]SellerStat, error) {
	var rows []store.SellerTotals
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Commissioner); err != nil {
			return err
		}
		var err error
		rows, err = tx.SellerTotals(eventID, w, sellerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := make([]SellerStat, 0, len(rows))
	for _, r := range rows {
		result = append(result, SellerStat{
			SellerID:         r.SellerID,
			SellerName:       r.SellerName,
			TotalSales:       r.TotalSales,
			TotalRevenue:     r.TotalRevenue,
			TotalCanceled:    r.TotalCanceled,
			CancellationRate: cancellationRate(r.TotalSales, r.TotalCanceled),
		})
	}
	return result, nil
}

// GetProductStatistics ranks products by all-time paid sales. Percentages
// are relative to the whole event even when limit truncates the list.
func (s *Service) GetProductStatistics(ctx context.Context, eventID uint, orderBy OrderBy, limit int, p authz.Principal) ([]ProductStat, error) {
	if orderBy == "" {
		orderBy = OrderBySales
	}
	if orderBy != OrderBySales && orderBy != OrderByRevenue {
		return nil, apperr.Validation("order_by", "must be sales or revenue")
	}
	if limit < 0 {
		return nil, apperr.Validation("limit", "must not be negative")
	}

	var rows []store.ProductTotals
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Commissioner); err != nil {
			return err
		}
		var err error
		rows, err = tx.ProductTotals(eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var (
		allSales   int64
		allRevenue = decimal.Zero
	)
	for _, r := range rows {
		allSales += r.TotalSales
		allRevenue = allRevenue.Add(r.TotalRevenue)
	}

	result := make([]ProductStat, 0, len(rows))
	for _, r := range rows {
		result = append(result, ProductStat{
			ProductID:           r.ProductID,
			ProductName:         r.ProductName,
			TotalSales:          r.TotalSales,
			TotalRevenue:        r.TotalRevenue,
			AverageTicket:       average(r.TotalRevenue, r.TotalSales),
			PercentageOfSales:   percentage(decimal.NewFromInt(r.TotalSales), decimal.NewFromInt(allSales)),
			PercentageOfRevenue: percentage(r.TotalRevenue, allRevenue),
			StockRemaining:      r.StockRemaining,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if orderBy == OrderByRevenue {
			if c := a.TotalRevenue.Cmp(b.TotalRevenue); c != 0 {
				return c > 0
			}
		} else if a.TotalSales != b.TotalSales {
			return a.TotalSales > b.TotalSales
		}
		return a.ProductID < b.ProductID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetEventSummary is the header card of the event dashboard.
func (s *Service) GetEventSummary(ctx context.Context, eventID uint, p authz.Principal) (*EventSummary, error) {
	var (
		event  *models.Event
		totals store.EventTotals
	)
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := authz.Require(tx, p, eventID, authz.Commissioner); err != nil {
			return err
		}
		var err error
		if event, err = tx.GetEvent(eventID); err != nil {
			return err
		}
		totals, err = tx.EventTotals(eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &EventSummary{
		EventID:              event.ID,
		EventName:            event.Name,
		EventStatus:          event.Status,
		EventDate:            event.EventDate,
		Created:              event.Created,
		ImageURL:             event.ImageURL,
		TotalProducts:        totals.TotalProducts,
		TotalSellers:         totals.TotalSellers,
		TotalSales:           totals.TotalSales,
		TotalRevenue:         totals.TotalRevenue,
		AverageTicket:        average(totals.TotalRevenue, totals.TotalSales),
		LastSaleDate:         totals.LastSaleDate,
		LastCancellationDate: totals.LastCancellationDate,
	}, nil
}

func average(revenue decimal.Decimal, sales int64) decimal.Decimal {
	if sales == 0 {
		return decimal.Zero
	}
	return revenue.DivRound(decimal.NewFromInt(sales), 2)
}

func cancellationRate(sales, canceled int64) float64 {
	if sales+canceled == 0 {
		return 0
	}
	return float64(canceled) / float64(sales+canceled) * 100
}

func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	pct, _ := part.Mul(decimal.NewFromInt(100)).DivRound(whole, 2).Float64()
	return pct
}
