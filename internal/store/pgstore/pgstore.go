// Package pgstore implements store.Store on PostgreSQL through gorm.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Tx(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, nil, fn)
}

// View uses REPEATABLE READ so that every statement issued by fn reads
// the same snapshot.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(store.Tx) error) error {
	var tx *gorm.DB
	if opts != nil {
		tx = s.db.WithContext(ctx).Begin(opts)
	} else {
		tx = s.db.WithContext(ctx).Begin()
	}
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&pgTx{db: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translate(err, ""))
	}
	return nil
}

// translate maps driver failures onto apperr kinds.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) && entity != "" {
		return apperr.NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Conflict(uniqueReason(pgErr.ConstraintName))
		case pgForeignKeyViolation:
			return apperr.Conflict("record is still referenced")
		}
	}
	return err
}

func uniqueReason(constraint string) string {
	switch constraint {
	case "idx_users_email":
		return "email already registered"
	case "idx_users_username":
		return "username already taken"
	case "idx_sales_unique_code":
		return "duplicate sale code"
	}
	return "record already exists"
}

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) CreateUser(u *models.User) error {
	return translate(t.db.Create(u).Error, "")
}

func (t *pgTx) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := t.db.First(&u, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (t *pgTx) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	if err := t.db.Where("lower(email) = lower(?)", email).First(&u).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (t *pgTx) GetUserByLogin(login string) (*models.User, error) {
	var u models.User
	err := t.db.Where("username = ? OR lower(email) = lower(?)", login, login).First(&u).Error
	if err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (t *pgTx) DeleteUser(id uint) error {
	result := t.db.Delete(&models.User{}, id)
	if result.Error != nil {
		return translate(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (t *pgTx) CountSalesBySeller(userID uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.Sale{}).Where("seller_id = ?", userID).Count(&n).Error
	return n, err
}

func (t *pgTx) CreateEvent(e *models.Event) error {
	return translate(t.db.Omit("Products").Create(e).Error, "")
}

func (t *pgTx) GetEvent(id uint) (*models.Event, error) {
	var e models.Event
	if err := t.db.First(&e, id).Error; err != nil {
		return nil, translate(err, "event")
	}
	return &e, nil
}

func (t *pgTx) UpdateEvent(e *models.Event) error {
	result := t.db.Omit("Products", "Created").Save(e)
	if result.Error != nil {
		return translate(result.Error, "event")
	}
	return nil
}

func (t *pgTx) DeleteEvent(id uint) error {
	result := t.db.Delete(&models.Event{}, id)
	if result.Error != nil {
		return translate(result.Error, "event")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("event")
	}
	return nil
}

func (t *pgTx) ListEvents(ids []uint) ([]models.Event, error) {
	events := []models.Event{}
	if len(ids) == 0 {
		return events, nil
	}
	err := t.db.Where("id IN ?", ids).Order("id").Find(&events).Error
	return events, err
}

func (t *pgTx) SearchEvents(q store.EventQuery) ([]models.Event, error) {
	db := t.db.Model(&models.Event{})
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Term != "" {
		like := "%" + escapeLike(q.Term) + "%"
		db = db.Where("(name ILIKE ? OR description ILIKE ?)", like, like)
	}
	if q.City != "" {
		db = db.Where("city ILIKE ?", "%"+escapeLike(q.City)+"%")
	}
	if !q.Day.IsZero() {
		db = db.Where("event_date >= ? AND event_date < ?", q.Day, q.Day.AddDate(0, 0, 1))
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	events := []models.Event{}
	err := db.Order("event_date, id").Find(&events).Error
	return events, err
}

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (t *pgTx) CountSalesByEvent(eventID uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.Sale{}).
		Joins("JOIN products ON products.id = sales.product_id").
		Where("products.event_id = ?", eventID).
		Count(&n).Error
	return n, err
}

func memberModel(kind models.MembershipKind, eventID, userID uint) interface{} {
	if kind == models.MemberAdministrator {
		return &models.EventAdministrator{EventID: eventID, UserID: userID}
	}
	return &models.EventCommissioner{EventID: eventID, UserID: userID}
}

func (t *pgTx) AddMember(eventID, userID uint, kind models.MembershipKind) error {
	err := t.db.Clauses(clause.OnConflict{DoNothing: true}).
		Omit("Event", "User").
		Create(memberModel(kind, eventID, userID)).Error
	return translate(err, "")
}

func (t *pgTx) IsMember(eventID, userID uint, kind models.MembershipKind) (bool, error) {
	var n int64
	err := t.db.Model(memberModel(kind, 0, 0)).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&n).Error
	return n > 0, err
}

func (t *pgTx) MemberEventIDs(userID uint) ([]uint, error) {
	ids := []uint{}
	err := t.db.Raw(`
		SELECT event_id FROM event_administrators WHERE user_id = ?
		UNION
		SELECT event_id FROM event_commissioners WHERE user_id = ?
		ORDER BY event_id`, userID, userID).Scan(&ids).Error
	return ids, err
}

func (t *pgTx) CreateProduct(p *models.Product) error {
	return translate(t.db.Create(p).Error, "event")
}

func (t *pgTx) GetProduct(id uint) (*models.Product, error) {
	var p models.Product
	if err := t.db.First(&p, id).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (t *pgTx) ProductForUpdate(id uint) (*models.Product, error) {
	var p models.Product
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, translate(err, "product")
	}
	return &p, nil
}

func (t *pgTx) UpdateProduct(p *models.Product) error {
	return translate(t.db.Save(p).Error, "product")
}

func (t *pgTx) ListProducts(eventID uint) ([]models.Product, error) {
	products := []models.Product{}
	err := t.db.Where("event_id = ?", eventID).Order("id").Find(&products).Error
	return products, err
}

func (t *pgTx) CreateSale(s *models.Sale) error {
	return translate(t.db.Omit("Product", "Seller").Create(s).Error, "product")
}

func (t *pgTx) GetSale(id uint) (*models.Sale, error) {
	var s models.Sale
	if err := t.db.First(&s, id).Error; err != nil {
		return nil, translate(err, "sale")
	}
	return &s, nil
}

func (t *pgTx) GetSaleByCode(code uuid.UUID) (*models.Sale, error) {
	var s models.Sale
	if err := t.db.Where("unique_code = ?", code).First(&s).Error; err != nil {
		return nil, translate(err, "sale")
	}
	return &s, nil
}

func (t *pgTx) SaleForUpdate(id uint) (*models.Sale, error) {
	var s models.Sale
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, id).Error
	if err != nil {
		return nil, translate(err, "sale")
	}
	return &s, nil
}

func (t *pgTx) UpdateSale(s *models.Sale) error {
	return translate(t.db.Omit("Product", "Seller").Save(s).Error, "sale")
}

func (t *pgTx) ListSales(f store.SaleFilter) ([]models.Sale, error) {
	sales := []models.Sale{}
	if f.EventIDs != nil && len(f.EventIDs) == 0 {
		return sales, nil
	}

	q := t.db.Model(&models.Sale{}).
		Joins("JOIN products ON products.id = sales.product_id")
	if f.EventIDs != nil {
		q = q.Where("products.event_id IN ?", f.EventIDs)
	}
	if f.EventID != nil {
		q = q.Where("products.event_id = ?", *f.EventID)
	}
	if f.ProductID != nil {
		q = q.Where("sales.product_id = ?", *f.ProductID)
	}
	if f.SellerID != nil {
		q = q.Where("sales.seller_id = ?", *f.SellerID)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	err := q.Select("sales.*").Order("sales.sale_date DESC, sales.id DESC").Find(&sales).Error
	return sales, err
}

func (t *pgTx) SaleTotals(eventID uint, w store.Window) (store.SaleTotals, error) {
	var totals store.SaleTotals
	err := t.db.Raw(`
		SELECT
			COUNT(*) FILTER (WHERE s.status = ?) AS total_sales,
			COALESCE(SUM(s.sale_price) FILTER (WHERE s.status = ?), 0) AS total_revenue,
			COUNT(*) FILTER (WHERE s.status = ?) AS total_canceled
		FROM sales s
		JOIN products p ON p.id = s.product_id
		WHERE p.event_id = ? AND s.sale_date BETWEEN ? AND ?`,
		models.SalePaid, models.SalePaid, models.SaleCanceled,
		eventID, w.Start, w.End,
	).Scan(&totals).Error
	return totals, err
}

func (t *pgTx) SellerTotals(eventID uint, w store.Window, sellerID *uint) ([]store.SellerTotals, error) {
	rows := []store.SellerTotals{}
	args := []interface{}{
		models.SalePaid, models.SalePaid, models.SaleCanceled,
		eventID, w.Start, w.End,
	}
	sellerClause := ""
	if sellerID != nil {
		sellerClause = "AND s.seller_id = ?"
		args = append(args, *sellerID)
	}

	err := t.db.Raw(`
		SELECT
			s.seller_id AS seller_id,
			u.username AS seller_name,
			COUNT(*) FILTER (WHERE s.status = ?) AS total_sales,
			COALESCE(SUM(s.sale_price) FILTER (WHERE s.status = ?), 0) AS total_revenue,
			COUNT(*) FILTER (WHERE s.status = ?) AS total_canceled
		FROM sales s
		JOIN products p ON p.id = s.product_id
		JOIN users u ON u.id = s.seller_id
		WHERE p.event_id = ? AND s.sale_date BETWEEN ? AND ? `+sellerClause+`
		GROUP BY s.seller_id, u.username
		ORDER BY total_revenue DESC, s.seller_id`,
		args...,
	).Scan(&rows).Error
	return rows, err
}

func (t *pgTx) ProductTotals(eventID uint) ([]store.ProductTotals, error) {
	rows := []store.ProductTotals{}
	err := t.db.Raw(`
		SELECT
			p.id AS product_id,
			p.name AS product_name,
			p.stock AS stock_remaining,
			COUNT(*) AS total_sales,
			COALESCE(SUM(s.sale_price), 0) AS total_revenue
		FROM sales s
		JOIN products p ON p.id = s.product_id
		WHERE p.event_id = ? AND s.status = ?
		GROUP BY p.id, p.name, p.stock
		ORDER BY p.id`,
		eventID, models.SalePaid,
	).Scan(&rows).Error
	return rows, err
}

func (t *pgTx) EventTotals(eventID uint) (store.EventTotals, error) {
	var totals store.EventTotals
	err := t.db.Raw(`
		SELECT
			(SELECT COUNT(*) FROM products WHERE event_id = ?) AS total_products,
			COUNT(DISTINCT s.seller_id) AS total_sellers,
			COUNT(s.id) FILTER (WHERE s.status = ?) AS total_sales,
			COALESCE(SUM(s.sale_price) FILTER (WHERE s.status = ?), 0) AS total_revenue,
			MAX(s.sale_date) AS last_sale_date,
			MAX(s.canceled_at) AS last_cancellation_date
		FROM sales s
		JOIN products p ON p.id = s.product_id
		WHERE p.event_id = ?`,
		eventID, models.SalePaid, models.SalePaid, eventID,
	).Scan(&totals).Error
	return totals, err
}
