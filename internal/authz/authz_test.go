package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
	"github.com/uaifestas/festas-go/internal/store/memstore"
)

type world struct {
	st      *memstore.Store
	eventID uint

	admin        Principal
	commissioner Principal
	both         Principal
	outsider     Principal
	globalAdmin  Principal
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{st: memstore.New()}

	err := w.st.Tx(context.Background(), func(tx store.Tx) error {
		mk := func(name string, role models.Role) Principal {
			u := models.User{Email: name + "@example.com", Username: name, Role: role}
			require.NoError(t, tx.CreateUser(&u))
			return Principal{UserID: u.ID, Role: u.Role}
		}
		w.admin = mk("admin", models.RoleClient)
		w.commissioner = mk("commissioner", models.RoleCommissioner)
		w.both = mk("both", models.RoleCommissioner)
		w.outsider = mk("outsider", models.RoleCommissioner)
		w.globalAdmin = mk("root", models.RoleAdmin)

		e := models.Event{Name: "Show", Status: models.EventActive}
		require.NoError(t, tx.CreateEvent(&e))
		w.eventID = e.ID

		require.NoError(t, tx.AddMember(e.ID, w.admin.UserID, models.MemberAdministrator))
		require.NoError(t, tx.AddMember(e.ID, w.commissioner.UserID, models.MemberCommissioner))
		require.NoError(t, tx.AddMember(e.ID, w.both.UserID, models.MemberCommissioner))
		return tx.AddMember(e.ID, w.both.UserID, models.MemberAdministrator)
	})
	require.NoError(t, err)
	return w
}

func TestResolve(t *testing.T) {
	w := newWorld(t)

	cases := []struct {
		name string
		p    Principal
		want Level
	}{
		{"event admin without global role", w.admin, Admin},
		{"commissioner member", w.commissioner, Commissioner},
		{"admin membership wins", w.both, Admin},
		{"non member", w.outsider, None},
		{"global admin without membership", w.globalAdmin, None},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, w.st.View(context.Background(), func(tx store.Tx) error {
				got, err := Resolve(tx, tc.p, w.eventID)
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
				return nil
			}))
		})
	}
}

func TestRequire(t *testing.T) {
	w := newWorld(t)

	check := func(p Principal, eventID uint, minimum Level) error {
		return w.st.View(context.Background(), func(tx store.Tx) error {
			return Require(tx, p, eventID, minimum)
		})
	}

	assert.NoError(t, check(w.admin, w.eventID, Admin))
	assert.NoError(t, check(w.commissioner, w.eventID, Commissioner))
	assert.ErrorIs(t, check(w.commissioner, w.eventID, Admin), apperr.ErrForbidden)
	assert.ErrorIs(t, check(w.outsider, w.eventID, Commissioner), apperr.ErrForbidden)
	assert.ErrorIs(t, check(w.admin, w.eventID+99, Commissioner), apperr.ErrNotFound)
}

func TestRequireGlobal(t *testing.T) {
	assert.NoError(t, RequireGlobal(Principal{UserID: 1, Role: models.RoleAdmin}, models.RoleAdmin))
	assert.ErrorIs(t, RequireGlobal(Principal{UserID: 1, Role: models.RoleCommissioner}, models.RoleAdmin), apperr.ErrForbidden)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "admin", Admin.String())
	assert.Equal(t, "commissioner", Commissioner.String())
	assert.Equal(t, "none", None.String())
}
