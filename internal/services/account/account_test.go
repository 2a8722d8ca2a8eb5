package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
	"github.com/uaifestas/festas-go/internal/store/memstore"
)

func newService(t *testing.T) (*Service, *memstore.Store, *config.Config) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}
	st := memstore.New()
	return NewService(cfg, st, zap.NewNop()), st, cfg
}

func TestRegister(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Maria@Example.COM ", Username: " maria ", Password: "segredo"})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.Equal(t, "maria", u.Username)
	assert.Equal(t, models.RoleClient, u.Role)
	assert.NotEqual(t, "segredo", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "maria@example.com", Username: "other", Password: "segredo"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Email: "other@example.com", Username: "maria", Password: "segredo"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	cases := []RegisterInput{
		{Email: "not-an-email", Username: "x", Password: "segredo"},
		{Email: "x@example.com", Username: "  ", Password: "segredo"},
		{Email: "x@example.com", Username: "x", Password: "123"},
		{Email: "x@example.com", Username: "x", Password: "segredo", Role: "root"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrValidation, in)
	}
}

func TestLogin(t *testing.T) {
	svc, _, cfg := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: "joao@example.com", Username: "joao", Password: "segredo", Role: models.RoleCommissioner})
	require.NoError(t, err)

	for _, login := range []string{"joao", "JOAO@example.com"} {
		session, err := svc.Login(ctx, login, "segredo")
		require.NoError(t, err, login)
		assert.Equal(t, "bearer", session.TokenType)

		claims, err := auth.ValidateToken(cfg, session.Token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.UserID)
		assert.Equal(t, models.RoleCommissioner, claims.Role)
	}

	_, err = svc.Login(ctx, "joao", "errada")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(ctx, "ninguem", "segredo")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestDeleteUser(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	admin, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "a", Password: "segredo", Role: models.RoleAdmin})
	require.NoError(t, err)
	seller, err := svc.Register(ctx, RegisterInput{Email: "s@example.com", Username: "s", Password: "segredo", Role: models.RoleCommissioner})
	require.NoError(t, err)
	client, err := svc.Register(ctx, RegisterInput{Email: "c@example.com", Username: "c", Password: "segredo"})
	require.NoError(t, err)

	require.NoError(t, st.Tx(ctx, func(tx store.Tx) error {
		e := models.Event{Name: "Festa", Status: models.EventActive}
		require.NoError(t, tx.CreateEvent(&e))
		p := models.Product{EventID: e.ID, Name: "Pista", Status: models.ProductUnlimited}
		require.NoError(t, tx.CreateProduct(&p))
		return tx.CreateSale(&models.Sale{
			ProductID: p.ID, SellerID: &seller.ID, BuyerName: "Ana", BuyerEmail: "ana@example.com",
			Status: models.SalePaid, SaleDate: time.Now(), UniqueCode: uuid.New(),
		})
	}))

	asClient := authz.Principal{UserID: client.ID, Role: client.Role}
	asSeller := authz.Principal{UserID: seller.ID, Role: seller.Role}

	assert.ErrorIs(t, svc.DeleteUser(ctx, seller.ID, asClient), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(ctx, seller.ID, asSeller), apperr.ErrConflict)

	require.NoError(t, svc.DeleteUser(ctx, client.ID, asClient))
	_, err = svc.GetUser(ctx, client.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.GetUser(ctx, admin.ID)
	assert.NoError(t, err)
}

func TestDeleteUser_GlobalAdminCannotDeleteOthers(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	victim, err := svc.Register(ctx, RegisterInput{Email: "v@example.com", Username: "v", Password: "segredo"})
	require.NoError(t, err)
	admin, err := svc.Register(ctx, RegisterInput{Email: "x@example.com", Username: "x", Password: "segredo", Role: models.RoleAdmin})
	require.NoError(t, err)

	err = svc.DeleteUser(ctx, victim.ID, authz.Principal{UserID: admin.ID, Role: admin.Role})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.GetUser(ctx, victim.ID)
	assert.NoError(t, err, "account must survive")
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, cfg := newService(t)

	r := gin.New()
	NewHandler(svc, zap.NewNop()).SetupRoutes(r.Group("/api"), r.Group("/api", auth.Middleware(cfg)))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/api/auth/register", `{"email":"ana@example.com","username":"ana","password":"segredo"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "segredo")
	assert.NotContains(t, w.Body.String(), "PasswordHash")

	w = post("/api/auth/register", `{"email":"ana@example.com","username":"ana2","password":"segredo"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post("/api/auth/register", `{"email":"bad","username":"x","password":"segredo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/api/auth/login", `{"username":"ana","password":"errada"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post("/api/auth/login", `{"username":"ana","password":"segredo"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token_type":"bearer"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
