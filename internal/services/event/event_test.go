package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
	"github.com/uaifestas/festas-go/internal/store/memstore"
)

func intPtr(v int) *int { return &v }

type catalog struct {
	st  *memstore.Store
	svc *Service

	admin     authz.Principal
	seller    authz.Principal
	otherAdm  authz.Principal
	eventDate time.Time
}

func newCatalog(t *testing.T) *catalog {
	t.Helper()
	c := &catalog{
		st:        memstore.New(),
		eventDate: time.Date(2025, 6, 24, 20, 0, 0, 0, time.UTC),
	}
	c.svc = NewService(c.st, zap.NewNop())

	require.NoError(t, c.st.Tx(context.Background(), func(tx store.Tx) error {
		mk := func(name string, role models.Role) authz.Principal {
			u := models.User{Email: name + "@example.com", Username: name, Role: role}
			require.NoError(t, tx.CreateUser(&u))
			return authz.Principal{UserID: u.ID, Role: u.Role}
		}
		c.admin = mk("admin", models.RoleAdmin)
		c.seller = mk("seller", models.RoleCommissioner)
		c.otherAdm = mk("other", models.RoleAdmin)
		return nil
	}))
	return c
}

func (c *catalog) event(t *testing.T) *models.Event {
	t.Helper()
	e, err := c.svc.CreateEvent(context.Background(), EventInput{
		Name:      "  Arraiá da UFU ",
		Street:    "Av. João Naves",
		Number:    "2121",
		City:      "Uberlândia",
		EventDate: c.eventDate,
	}, c.admin)
	require.NoError(t, err)
	return e
}

func TestCreateEvent(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := c.svc.CreateEvent(ctx, EventInput{Name: "X", EventDate: c.eventDate}, c.seller)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = c.svc.CreateEvent(ctx, EventInput{Name: "   ", EventDate: c.eventDate}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.svc.CreateEvent(ctx, EventInput{Name: "Sem data"}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	e := c.event(t)
	assert.Equal(t, "Arraiá da UFU", e.Name)
	assert.Equal(t, models.EventActive, e.Status)

	require.NoError(t, c.st.View(ctx, func(tx store.Tx) error {
		level, err := authz.Resolve(tx, c.admin, e.ID)
		require.NoError(t, err)
		assert.Equal(t, authz.Admin, level)
		return nil
	}))

	events, err := c.svc.ListEvents(ctx, c.admin)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)

	events, err = c.svc.ListEvents(ctx, c.otherAdm)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGlobalAdminWithoutMembershipIsForbidden(t *testing.T) {
	c := newCatalog(t)
	e := c.event(t)

	_, err := c.svc.UpdateEventStatus(context.Background(), e.ID, models.EventCancelled, c.otherAdm)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = c.svc.CreateProduct(context.Background(), e.ID, ProductInput{Name: "Pista"}, c.otherAdm)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateEventStatus(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	e := c.event(t)

	updated, err := c.svc.UpdateEventStatus(ctx, e.ID, models.EventCompleted, c.admin)
	require.NoError(t, err)
	assert.Equal(t, models.EventCompleted, updated.Status)

	_, err = c.svc.UpdateEventStatus(ctx, e.ID, models.EventStatus("postponed"), c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.svc.UpdateEventStatus(ctx, 999, models.EventActive, c.admin)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateEvent_KeepsUnsetFields(t *testing.T) {
	c := newCatalog(t)
	e := c.event(t)

	city := "Uberaba"
	updated, err := c.svc.UpdateEvent(context.Background(), e.ID, EventPatch{City: &city}, c.admin)
	require.NoError(t, err)
	assert.Equal(t, "Uberaba", updated.City)
	assert.Equal(t, "Arraiá da UFU", updated.Name)
	assert.True(t, c.eventDate.Equal(updated.EventDate))
}

func TestCreateProduct_Status(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	e := c.event(t)

	cases := []struct {
		name  string
		stock *int
		want  models.ProductStatus
	}{
		{"unlimited", nil, models.ProductUnlimited},
		{"sold out", intPtr(0), models.ProductOutOfStock},
		{"limited", intPtr(5), models.ProductActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := c.svc.CreateProduct(ctx, e.ID, ProductInput{
				Name:  tc.name,
				Price: decimal.RequireFromString("49.90"),
				Stock: tc.stock,
			}, c.admin)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Status)
			assert.Equal(t, e.ID, p.EventID)
		})
	}

	products, err := c.svc.ListProducts(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	got, err := c.svc.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Products, 3)
}

func TestCreateProduct_Rejects(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	e := c.event(t)

	_, err := c.svc.CreateProduct(ctx, e.ID, ProductInput{Name: "Pista", Price: decimal.NewFromInt(-1)}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.svc.CreateProduct(ctx, e.ID, ProductInput{Name: "Pista", Stock: intPtr(-2)}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.svc.CreateProduct(ctx, 404, ProductInput{Name: "Pista"}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.svc.AddEventCommissioner(ctx, e.ID, "seller@example.com", c.admin)
	require.NoError(t, err)
	_, err = c.svc.CreateProduct(ctx, e.ID, ProductInput{Name: "Pista"}, c.seller)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateProduct(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	e := c.event(t)

	p, err := c.svc.CreateProduct(ctx, e.ID, ProductInput{Name: "Pista", Price: decimal.NewFromInt(50), Stock: intPtr(0)}, c.admin)
	require.NoError(t, err)

	sale := models.Sale{
		ProductID: p.ID, BuyerName: "Ana", BuyerEmail: "ana@example.com",
		Status: models.SalePaid, SaleDate: c.eventDate, UniqueCode: uuid.New(), SalePrice: p.Price,
	}
	require.NoError(t, c.st.Tx(ctx, func(tx store.Tx) error { return tx.CreateSale(&sale) }))

	price := decimal.NewFromInt(80)
	updated, err := c.svc.UpdateProduct(ctx, p.ID, ProductPatch{Price: &price, Stock: intPtr(3)}, c.admin)
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, models.ProductActive, updated.Status)

	require.NoError(t, c.st.View(ctx, func(tx store.Tx) error {
		got, err := tx.GetSale(sale.ID)
		require.NoError(t, err)
		assert.True(t, got.SalePrice.Equal(decimal.NewFromInt(50)))
		return nil
	}))

	inactive := models.ProductInactive
	updated, err = c.svc.UpdateProduct(ctx, p.ID, ProductPatch{Status: &inactive}, c.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ProductInactive, updated.Status)

	updated, err = c.svc.UpdateProduct(ctx, p.ID, ProductPatch{ClearStock: true}, c.admin)
	require.NoError(t, err)
	assert.Nil(t, updated.Stock)
	assert.Equal(t, models.ProductInactive, updated.Status)

	active := models.ProductActive
	updated, err = c.svc.UpdateProduct(ctx, p.ID, ProductPatch{Status: &active}, c.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ProductUnlimited, updated.Status)

	soldOut := models.ProductOutOfStock
	_, err = c.svc.UpdateProduct(ctx, p.ID, ProductPatch{Status: &soldOut}, c.admin)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAddMembers(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	e := c.event(t)

	_, err := c.svc.AddEventCommissioner(ctx, e.ID, "nobody@example.com", c.admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "user not found")

	_, err = c.svc.AddEventCommissioner(ctx, e.ID, " Seller@Example.com ", c.admin)
	require.NoError(t, err)
	_, err = c.svc.AddEventCommissioner(ctx, e.ID, "seller@example.com", c.admin)
	require.NoError(t, err, "granting twice is a no-op")

	events, err := c.svc.ListEvents(ctx, c.seller)
	require.NoError(t, err)
	require.Len(t, events, 1)

	_, err = c.svc.AddEventAdministrator(ctx, e.ID, "other@example.com", c.seller)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = c.svc.AddEventAdministrator(ctx, e.ID, "other@example.com", c.admin)
	require.NoError(t, err)

	require.NoError(t, c.st.View(ctx, func(tx store.Tx) error {
		level, err := authz.Resolve(tx, c.otherAdm, e.ID)
		require.NoError(t, err)
		assert.Equal(t, authz.Admin, level)

		u, err := tx.GetUser(c.seller.UserID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleCommissioner, u.Role)
		return nil
	}))
}

func TestDeleteEvent(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	e := c.event(t)
	p, err := c.svc.CreateProduct(ctx, e.ID, ProductInput{Name: "Pista"}, c.admin)
	require.NoError(t, err)

	sale := models.Sale{
		ProductID: p.ID, BuyerName: "Ana", BuyerEmail: "ana@example.com",
		Status: models.SalePaid, SaleDate: c.eventDate, UniqueCode: uuid.New(),
	}
	require.NoError(t, c.st.Tx(ctx, func(tx store.Tx) error { return tx.CreateSale(&sale) }))

	err = c.svc.DeleteEvent(ctx, e.ID, c.admin)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	empty := c.event(t)
	_, err = c.svc.CreateProduct(ctx, empty.ID, ProductInput{Name: "Camarote"}, c.admin)
	require.NoError(t, err)

	assert.ErrorIs(t, c.svc.DeleteEvent(ctx, empty.ID, c.seller), apperr.ErrForbidden)
	require.NoError(t, c.svc.DeleteEvent(ctx, empty.ID, c.admin))

	_, err = c.svc.GetEvent(ctx, empty.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	events, err := c.svc.ListEvents(ctx, c.admin)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.ID, events[0].ID)
}
