package event

import (
	"context"
	"strings"
	"time"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// SearchInput holds the public catalog filters. Date is YYYY-MM-DD in the
// server's local time zone.
type SearchInput struct {
	Term  string
	City  string
	Date  string
	Limit int
}

// SearchEvents lists active events for anonymous browsing, soonest first.
func (s *Service) SearchEvents(ctx context.Context, in SearchInput) ([]models.Event, error) {
	q := store.EventQuery{
		Term:   strings.TrimSpace(in.Term),
		City:   strings.TrimSpace(in.City),
		Status: models.EventActive,
		Limit:  in.Limit,
	}

	switch {
	case q.Limit == 0:
		q.Limit = defaultSearchLimit
	case q.Limit < 0:
		return nil, apperr.Validation("limit", "must not be negative")
	case q.Limit > maxSearchLimit:
		q.Limit = maxSearchLimit
	}

	if in.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", in.Date, time.Local)
		if err != nil {
			return nil, apperr.Validation("date", "must be formatted as YYYY-MM-DD")
		}
		q.Day = day
	}

	var events []models.Event
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		events, err = tx.SearchEvents(q)
		return err
	})
	return events, err
}
