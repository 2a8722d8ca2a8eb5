// Package memstore is an in-memory store.Store. A single mutex is held for
// the whole of every transaction, and writes go to a private copy that
// replaces the committed state only when the transaction succeeds.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

type memberKey struct {
	eventID uint
	userID  uint
}

type state struct {
	nextUser, nextEvent, nextProduct, nextSale uint

	users          map[uint]models.User
	events         map[uint]models.Event
	products       map[uint]models.Product
	sales          map[uint]models.Sale
	administrators map[memberKey]time.Time
	commissioners  map[memberKey]time.Time
}

func New() *Store {
	return &Store{
		data: &state{
			users:          make(map[uint]models.User),
			events:         make(map[uint]models.Event),
			products:       make(map[uint]models.Product),
			sales:          make(map[uint]models.Sale),
			administrators: make(map[memberKey]time.Time),
			commissioners:  make(map[memberKey]time.Time),
		},
		now: time.Now,
	}
}

func (s *Store) Tx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(&tx{st: working, now: s.now}); err != nil {
		return err
	}
	s.data = working
	return nil
}

func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Writes made through a view are discarded.
	return fn(&tx{st: s.data.clone(), now: s.now})
}

func (st *state) clone() *state {
	c := &state{
		nextUser:       st.nextUser,
		nextEvent:      st.nextEvent,
		nextProduct:    st.nextProduct,
		nextSale:       st.nextSale,
		users:          make(map[uint]models.User, len(st.users)),
		events:         make(map[uint]models.Event, len(st.events)),
		products:       make(map[uint]models.Product, len(st.products)),
		sales:          make(map[uint]models.Sale, len(st.sales)),
		administrators: make(map[memberKey]time.Time, len(st.administrators)),
		commissioners:  make(map[memberKey]time.Time, len(st.commissioners)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	for k, v := range st.products {
		c.products[k] = copyProduct(v)
	}
	for k, v := range st.sales {
		c.sales[k] = copySale(v)
	}
	for k, v := range st.administrators {
		c.administrators[k] = v
	}
	for k, v := range st.commissioners {
		c.commissioners[k] = v
	}
	return c
}

func copyProduct(p models.Product) models.Product {
	if p.Stock != nil {
		v := *p.Stock
		p.Stock = &v
	}
	return p
}

func copySale(s models.Sale) models.Sale {
	if s.SellerID != nil {
		v := *s.SellerID
		s.SellerID = &v
	}
	if s.CheckedAt != nil {
		v := *s.CheckedAt
		s.CheckedAt = &v
	}
	if s.CanceledAt != nil {
		v := *s.CanceledAt
		s.CanceledAt = &v
	}
	s.Product = nil
	s.Seller = nil
	return s
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) CreateUser(u *models.User) error {
	for _, existing := range t.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Conflict("email already registered")
		}
		if existing.Username == u.Username {
			return apperr.Conflict("username already taken")
		}
	}
	t.st.nextUser++
	u.ID = t.st.nextUser
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	u.UpdatedAt = u.CreatedAt
	t.st.users[u.ID] = *u
	return nil
}

func (t *tx) GetUser(id uint) (*models.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (t *tx) GetUserByEmail(email string) (*models.User, error) {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (t *tx) GetUserByLogin(login string) (*models.User, error) {
	for _, u := range t.st.users {
		if u.Username == login || strings.EqualFold(u.Email, login) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (t *tx) DeleteUser(id uint) error {
	if _, ok := t.st.users[id]; !ok {
		return apperr.NotFound("user")
	}
	if n, _ := t.CountSalesBySeller(id); n > 0 {
		return apperr.Conflict("user is the seller of record of existing sales")
	}
	delete(t.st.users, id)
	for k := range t.st.administrators {
		if k.userID == id {
			delete(t.st.administrators, k)
		}
	}
	for k := range t.st.commissioners {
		if k.userID == id {
			delete(t.st.commissioners, k)
		}
	}
	return nil
}

func (t *tx) CountSalesBySeller(userID uint) (int64, error) {
	var n int64
	for _, s := range t.st.sales {
		if s.SellerID != nil && *s.SellerID == userID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateEvent(e *models.Event) error {
	t.st.nextEvent++
	e.ID = t.st.nextEvent
	if e.Created.IsZero() {
		e.Created = t.now()
	}
	e.UpdatedAt = e.Created
	stored := *e
	stored.Products = nil
	t.st.events[e.ID] = stored
	return nil
}

func (t *tx) GetEvent(id uint) (*models.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	return &e, nil
}

func (t *tx) UpdateEvent(e *models.Event) error {
	if _, ok := t.st.events[e.ID]; !ok {
		return apperr.NotFound("event")
	}
	e.UpdatedAt = t.now()
	stored := *e
	stored.Products = nil
	t.st.events[e.ID] = stored
	return nil
}

func (t *tx) DeleteEvent(id uint) error {
	if _, ok := t.st.events[id]; !ok {
		return apperr.NotFound("event")
	}
	if n, _ := t.CountSalesByEvent(id); n > 0 {
		return apperr.Conflict("event has sales")
	}
	for pid, p := range t.st.products {
		if p.EventID == id {
			delete(t.st.products, pid)
		}
	}
	for k := range t.st.administrators {
		if k.eventID == id {
			delete(t.st.administrators, k)
		}
	}
	for k := range t.st.commissioners {
		if k.eventID == id {
			delete(t.st.commissioners, k)
		}
	}
	delete(t.st.events, id)
	return nil
}

func (t *tx) ListEvents(ids []uint) ([]models.Event, error) {
	events := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.st.events[id]; ok {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (t *tx) SearchEvents(q store.EventQuery) ([]models.Event, error) {
	term := strings.ToLower(q.Term)
	city := strings.ToLower(q.City)
	events := []models.Event{}
	for _, e := range t.st.events {
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(e.Name), term) &&
			!strings.Contains(strings.ToLower(e.Description), term) {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(e.City), city) {
			continue
		}
		if !q.Day.IsZero() {
			start := q.Day
			if d := e.EventDate.In(start.Location()); d.Before(start) || !d.Before(start.AddDate(0, 0, 1)) {
				continue
			}
		}
		events = append(events, e)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		return events[i].ID < events[j].ID
	})
	if q.Limit > 0 && len(events) > q.Limit {
		events = events[:q.Limit]
	}
	return events, nil
}

func (t *tx) CountSalesByEvent(eventID uint) (int64, error) {
	var n int64
	for _, s := range t.st.sales {
		if t.eventOf(s) == eventID {
			n++
		}
	}
	return n, nil
}

func (t *tx) members(kind models.MembershipKind) map[memberKey]time.Time {
	if kind == models.MemberAdministrator {
		return t.st.administrators
	}
	return t.st.commissioners
}

func (t *tx) AddMember(eventID, userID uint, kind models.MembershipKind) error {
	if _, ok := t.st.events[eventID]; !ok {
		return apperr.NotFound("event")
	}
	if _, ok := t.st.users[userID]; !ok {
		return apperr.NotFound("user")
	}
	set := t.members(kind)
	key := memberKey{eventID: eventID, userID: userID}
	if _, ok := set[key]; !ok {
		set[key] = t.now()
	}
	return nil
}

func (t *tx) IsMember(eventID, userID uint, kind models.MembershipKind) (bool, error) {
	_, ok := t.members(kind)[memberKey{eventID: eventID, userID: userID}]
	return ok, nil
}

func (t *tx) MemberEventIDs(userID uint) ([]uint, error) {
	seen := make(map[uint]bool)
	ids := []uint{}
	for _, set := range []map[memberKey]time.Time{t.st.administrators, t.st.commissioners} {
		for k := range set {
			if k.userID == userID && !seen[k.eventID] {
				seen[k.eventID] = true
				ids = append(ids, k.eventID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *tx) CreateProduct(p *models.Product) error {
	if _, ok := t.st.events[p.EventID]; !ok {
		return apperr.NotFound("event")
	}
	t.st.nextProduct++
	p.ID = t.st.nextProduct
	p.CreatedAt = t.now()
	p.UpdatedAt = p.CreatedAt
	t.st.products[p.ID] = copyProduct(*p)
	return nil
}

func (t *tx) GetProduct(id uint) (*models.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, apperr.NotFound("product")
	}
	p = copyProduct(p)
	return &p, nil
}

// ProductForUpdate needs no extra locking: the store mutex is held for
// the whole transaction.
func (t *tx) ProductForUpdate(id uint) (*models.Product, error) {
	return t.GetProduct(id)
}

func (t *tx) UpdateProduct(p *models.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return apperr.NotFound("product")
	}
	p.UpdatedAt = t.now()
	t.st.products[p.ID] = copyProduct(*p)
	return nil
}

func (t *tx) ListProducts(eventID uint) ([]models.Product, error) {
	products := []models.Product{}
	for _, p := range t.st.products {
		if p.EventID == eventID {
			products = append(products, copyProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (t *tx) CreateSale(s *models.Sale) error {
	if _, ok := t.st.products[s.ProductID]; !ok {
		return apperr.NotFound("product")
	}
	for _, existing := range t.st.sales {
		if existing.UniqueCode == s.UniqueCode {
			return apperr.Conflict("duplicate sale code")
		}
	}
	t.st.nextSale++
	s.ID = t.st.nextSale
	t.st.sales[s.ID] = copySale(*s)
	return nil
}

func (t *tx) GetSale(id uint) (*models.Sale, error) {
	s, ok := t.st.sales[id]
	if !ok {
		return nil, apperr.NotFound("sale")
	}
	s = copySale(s)
	return &s, nil
}

func (t *tx) GetSaleByCode(code uuid.UUID) (*models.Sale, error) {
	for _, s := range t.st.sales {
		if s.UniqueCode == code {
			s = copySale(s)
			return &s, nil
		}
	}
	return nil, apperr.NotFound("sale")
}

func (t *tx) SaleForUpdate(id uint) (*models.Sale, error) {
	return t.GetSale(id)
}

func (t *tx) UpdateSale(s *models.Sale) error {
	if _, ok := t.st.sales[s.ID]; !ok {
		return apperr.NotFound("sale")
	}
	t.st.sales[s.ID] = copySale(*s)
	return nil
}

func (t *tx) ListSales(f store.SaleFilter) ([]models.Sale, error) {
	var allowed map[uint]bool
	if f.EventIDs != nil {
		allowed = make(map[uint]bool, len(f.EventIDs))
		for _, id := range f.EventIDs {
			allowed[id] = true
		}
	}

	sales := []models.Sale{}
	for _, s := range t.st.sales {
		eventID := t.eventOf(s)
		if allowed != nil && !allowed[eventID] {
			continue
		}
		if f.EventID != nil && eventID != *f.EventID {
			continue
		}
		if f.ProductID != nil && s.ProductID != *f.ProductID {
			continue
		}
		if f.SellerID != nil && (s.SellerID == nil || *s.SellerID != *f.SellerID) {
			continue
		}
		sales = append(sales, copySale(s))
	}

	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].SaleDate.Equal(sales[j].SaleDate) {
			return sales[i].SaleDate.After(sales[j].SaleDate)
		}
		return sales[i].ID > sales[j].ID
	})

	if f.Offset >= len(sales) {
		return []models.Sale{}, nil
	}
	sales = sales[f.Offset:]
	if f.Limit > 0 && len(sales) > f.Limit {
		sales = sales[:f.Limit]
	}
	return sales, nil
}

func (t *tx) eventOf(s models.Sale) uint {
	return t.st.products[s.ProductID].EventID
}

func (t *tx) SaleTotals(eventID uint, w store.Window) (store.SaleTotals, error) {
	totals := store.SaleTotals{TotalRevenue: decimal.Zero}
	for _, s := range t.st.sales {
		if t.eventOf(s) != eventID || !w.Contains(s.SaleDate) {
			continue
		}
		switch s.Status {
		case models.SalePaid:
			totals.TotalSales++
			totals.TotalRevenue = totals.TotalRevenue.Add(s.SalePrice)
		case models.SaleCanceled:
			totals.TotalCanceled++
		}
	}
	return totals, nil
}

func (t *tx) SellerTotals(eventID uint, w store.Window, sellerID *uint) ([]store.SellerTotals, error) {
	bySeller := make(map[uint]*store.SellerTotals)
	for _, s := range t.st.sales {
		if s.SellerID == nil || t.eventOf(s) != eventID || !w.Contains(s.SaleDate) {
			continue
		}
		if sellerID != nil && *s.SellerID != *sellerID {
			continue
		}
		row, ok := bySeller[*s.SellerID]
		if !ok {
			row = &store.SellerTotals{
				SellerID:     *s.SellerID,
				SellerName:   t.st.users[*s.SellerID].Username,
				TotalRevenue: decimal.Zero,
			}
			bySeller[*s.SellerID] = row
		}
		switch s.Status {
		case models.SalePaid:
			row.TotalSales++
			row.TotalRevenue = row.TotalRevenue.Add(s.SalePrice)
		case models.SaleCanceled:
			row.TotalCanceled++
		}
	}

	rows := make([]store.SellerTotals, 0, len(bySeller))
	for _, row := range bySeller {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].TotalRevenue.Cmp(rows[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return rows[i].SellerID < rows[j].SellerID
	})
	return rows, nil
}

func (t *tx) ProductTotals(eventID uint) ([]store.ProductTotals, error) {
	byProduct := make(map[uint]*store.ProductTotals)
	for _, s := range t.st.sales {
		if s.Status != models.SalePaid {
			continue
		}
		p := t.st.products[s.ProductID]
		if p.EventID != eventID {
			continue
		}
		row, ok := byProduct[p.ID]
		if !ok {
			row = &store.ProductTotals{
				ProductID:      p.ID,
				ProductName:    p.Name,
				StockRemaining: copyProduct(p).Stock,
				TotalRevenue:   decimal.Zero,
			}
			byProduct[p.ID] = row
		}
		row.TotalSales++
		row.TotalRevenue = row.TotalRevenue.Add(s.SalePrice)
	}

	rows := make([]store.ProductTotals, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductID < rows[j].ProductID })
	return rows, nil
}

func (t *tx) EventTotals(eventID uint) (store.EventTotals, error) {
	totals := store.EventTotals{TotalRevenue: decimal.Zero}
	for _, p := range t.st.products {
		if p.EventID == eventID {
			totals.TotalProducts++
		}
	}
	sellers := map[uint]bool{}
	for _, s := range t.st.sales {
		if t.eventOf(s) != eventID {
			continue
		}
		if s.SellerID != nil && !sellers[*s.SellerID] {
			sellers[*s.SellerID] = true
			totals.TotalSellers++
		}
		if s.Status == models.SalePaid {
			totals.TotalSales++
			totals.TotalRevenue = totals.TotalRevenue.Add(s.SalePrice)
		}
		if totals.LastSaleDate == nil || s.SaleDate.After(*totals.LastSaleDate) {
			d := s.SaleDate
			totals.LastSaleDate = &d
		}
		if s.CanceledAt != nil && (totals.LastCancellationDate == nil || s.CanceledAt.After(*totals.LastCancellationDate)) {
			d := *s.CanceledAt
			totals.LastCancellationDate = &d
		}
	}
	return totals, nil
}
