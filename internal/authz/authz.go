// Package authz resolves a principal's effective role on an event.
//
// Event membership is authoritative. A global admin role allows creating
// events but grants nothing on an event the user is not a member of.
package authz

import (
	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uint
	Role   models.Role
}

// Level is an effective role on one event, ordered admin > commissioner > none.
type Level int

const (
	None Level = iota
	Commissioner
	Admin
)

func (l Level) String() string {
	switch l {
	case Admin:
		return "admin"
	case Commissioner:
		return "commissioner"
	}
	return "none"
}

// Resolve returns the effective role of p on eventID. It does not check
// that the event exists.
func Resolve(tx store.Tx, p Principal, eventID uint) (Level, error) {
	isAdmin, err := tx.IsMember(eventID, p.UserID, models.MemberAdministrator)
	if err != nil {
		return None, err
	}
	if isAdmin {
		return Admin, nil
	}

	isCommissioner, err := tx.IsMember(eventID, p.UserID, models.MemberCommissioner)
	if err != nil {
		return None, err
	}
	if isCommissioner {
		return Commissioner, nil
	}
	return None, nil
}

// Require fails with NotFound when the event does not exist and with
// Forbidden when p resolves below minimum.
func Require(tx store.Tx, p Principal, eventID uint, minimum Level) error {
	if _, err := tx.GetEvent(eventID); err != nil {
		return err
	}

	level, err := Resolve(tx, p, eventID)
	if err != nil {
		return err
	}
	if level < minimum {
		return apperr.Forbidden("requires " + minimum.String() + " role on this event")
	}
	return nil
}

// RequireGlobal checks the account-wide role.
func RequireGlobal(p Principal, role models.Role) error {
	if p.Role != role {
		return apperr.Forbidden("requires global " + string(role) + " role")
	}
	return nil
}
