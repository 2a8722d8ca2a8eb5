//go:build integration

package pgstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/notify"
	"github.com/uaifestas/festas-go/internal/services/sale"
	"github.com/uaifestas/festas-go/internal/store"
	"github.com/uaifestas/festas-go/internal/store/pgstore"
)

// setupTestDB starts a PostgreSQL container with the schema applied.
func setupTestDB(t *testing.T) *pgstore.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("festas"),
		postgres.WithUsername("festas"),
		postgres.WithPassword("festas"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	return pgstore.New(db)
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, notify.Ticket) error { return nil }

type seed struct {
	admin   models.User
	seller  models.User
	event   models.Event
	product models.Product
}

func seedEvent(t *testing.T, st store.Store, stock int) seed {
	t.Helper()
	var s seed
	require.NoError(t, st.Tx(context.Background(), func(tx store.Tx) error {
		s.admin = models.User{Email: "admin@example.com", Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}
		require.NoError(t, tx.CreateUser(&s.admin))
		s.seller = models.User{Email: "joao@example.com", Username: "joao", PasswordHash: "x", Role: models.RoleCommissioner}
		require.NoError(t, tx.CreateUser(&s.seller))

		s.event = models.Event{Name: "Arraiá", Description: "Festa", EventDate: time.Now().AddDate(0, 1, 0), Status: models.EventActive}
		require.NoError(t, tx.CreateEvent(&s.event))
		require.NoError(t, tx.AddMember(s.event.ID, s.admin.ID, models.MemberAdministrator))
		require.NoError(t, tx.AddMember(s.event.ID, s.seller.ID, models.MemberCommissioner))

		s.product = models.Product{EventID: s.event.ID, Name: "Pista", Price: decimal.RequireFromString("45.50"), Stock: &stock, Status: models.ProductActive}
		return tx.CreateProduct(&s.product)
	}))
	return s
}

func TestPostgres_ConcurrentSalesNeverOversell(t *testing.T) {
	st := setupTestDB(t)
	s := seedEvent(t, st, 5)
	engine := sale.NewEngine(st, nopDispatcher{}, zap.NewNop())

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, failed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateSale(context.Background(), sale.CreateInput{
				ProductID:  s.product.ID,
				BuyerName:  "Comprador",
				BuyerEmail: "comprador@example.com",
				SellerID:   &s.seller.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, apperr.ErrOutOfStock) {
				failed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, failed)

	require.NoError(t, st.View(context.Background(), func(tx store.Tx) error {
		p, err := tx.GetProduct(s.product.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, *p.Stock)
		assert.Equal(t, models.ProductOutOfStock, p.Status)

		n, err := tx.CountSalesByEvent(s.event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
		return nil
	}))
}

func TestPostgres_ConcurrentCheckInHasOneWinner(t *testing.T) {
	st := setupTestDB(t)
	s := seedEvent(t, st, 5)
	engine := sale.NewEngine(st, nopDispatcher{}, zap.NewNop())

	res, err := engine.CreateSale(context.Background(), sale.CreateInput{
		ProductID: s.product.ID, BuyerName: "Ana", BuyerEmail: "ana@example.com",
	})
	require.NoError(t, err)

	p := authz.Principal{UserID: s.seller.ID, Role: s.seller.Role}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.CheckIn(context.Background(), res.Sale.UniqueCode, p); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPostgres_ConstraintsMapToConflict(t *testing.T) {
	st := setupTestDB(t)
	s := seedEvent(t, st, 5)
	ctx := context.Background()

	err := st.Tx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(&models.User{Email: "admin@example.com", Username: "other", PasswordHash: "x", Role: models.RoleClient})
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "email already registered")

	code := uuid.New()
	err = st.Tx(ctx, func(tx store.Tx) error {
		for i := 0; i < 2; i++ {
			sale := models.Sale{
				ProductID: s.product.ID, BuyerName: "Ana", BuyerEmail: "ana@example.com",
				Status: models.SalePaid, PaymentMethod: "cash", SaleDate: time.Now(),
				UniqueCode: code, SalePrice: s.product.Price,
			}
			if err := tx.CreateSale(&sale); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "duplicate sale code")

	require.NoError(t, st.Tx(ctx, func(tx store.Tx) error {
		return tx.AddMember(s.event.ID, s.seller.ID, models.MemberCommissioner)
	}), "adding an existing member is a no-op")

	err = st.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetEvent(999)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostgres_Aggregates(t *testing.T) {
	st := setupTestDB(t)
	s := seedEvent(t, st, 10)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.Tx(ctx, func(tx store.Tx) error {
		add := func(status models.SaleStatus, at time.Time, seller *uint) {
			sale := models.Sale{
				ProductID: s.product.ID, SellerID: seller, BuyerName: "Ana", BuyerEmail: "ana@example.com",
				Status: status, PaymentMethod: "cash", SaleDate: at, UniqueCode: uuid.New(), SalePrice: s.product.Price,
			}
			if status == models.SaleCanceled {
				canceled := at.Add(time.Hour)
				sale.CanceledAt = &canceled
			}
			require.NoError(t, tx.CreateSale(&sale))
		}
		add(models.SalePaid, base, &s.seller.ID)
		add(models.SalePaid, base.Add(24*time.Hour), &s.seller.ID)
		add(models.SaleCanceled, base.Add(48*time.Hour), &s.seller.ID)
		add(models.SalePaid, base.Add(30*24*time.Hour), nil)
		return nil
	}))

	window := store.Window{Start: base, End: base.Add(72 * time.Hour)}
	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		totals, err := tx.SaleTotals(s.event.ID, window)
		require.NoError(t, err)
		assert.Equal(t, int64(2), totals.TotalSales)
		assert.Equal(t, int64(1), totals.TotalCanceled)
		assert.True(t, totals.TotalRevenue.Equal(decimal.RequireFromString("91.00")), totals.TotalRevenue.String())

		sellers, err := tx.SellerTotals(s.event.ID, window, nil)
		require.NoError(t, err)
		require.Len(t, sellers, 1)
		assert.Equal(t, "joao", sellers[0].SellerName)

		products, err := tx.ProductTotals(s.event.ID)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, int64(3), products[0].TotalSales)
		require.NotNil(t, products[0].StockRemaining)
		assert.Equal(t, 10, *products[0].StockRemaining)

		event, err := tx.EventTotals(s.event.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), event.TotalProducts)
		assert.Equal(t, int64(1), event.TotalSellers)
		assert.Equal(t, int64(3), event.TotalSales)
		require.NotNil(t, event.LastSaleDate)
		assert.True(t, event.LastSaleDate.Equal(base.Add(30*24*time.Hour)))
		require.NotNil(t, event.LastCancellationDate)

		sales, err := tx.ListSales(store.SaleFilter{EventIDs: []uint{s.event.ID}, Limit: 2})
		require.NoError(t, err)
		require.Len(t, sales, 2)
		assert.True(t, sales[0].SaleDate.After(sales[1].SaleDate))

		sales, err = tx.ListSales(store.SaleFilter{EventIDs: []uint{}})
		require.NoError(t, err)
		assert.Empty(t, sales)
		return nil
	}))

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		events, err := tx.SearchEvents(store.EventQuery{Term: "FEST", Status: models.EventActive})
		require.NoError(t, err)
		require.Len(t, events, 1)

		events, err = tx.SearchEvents(store.EventQuery{Term: "100%"})
		require.NoError(t, err)
		assert.Empty(t, events, "wildcards in the term are literal")
		return nil
	}))

	err := st.Tx(ctx, func(tx store.Tx) error { return tx.DeleteEvent(s.event.ID) })
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
