package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"printmatch/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyAssigned   = errors.New("order already has an executor")
	ErrInvalidIdentifier = errors.New("invalid sql identifier")
)

// Имена таблиц и колонок, которые допустимо подставлять в DDL
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier проверяет имя таблицы/колонки до любого обращения к БД
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

type Storage struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewStorage создает Storage; timeout ограничивает каждый запрос (0 - без ограничения)
func NewStorage(db *sqlx.DB, timeout time.Duration) *Storage {
	return &Storage{db: db, timeout: timeout}
}

func (s *Storage) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Provider (Исполнитель)

func (s *Storage) CreateProvider(ctx context.Context, p *models.Provider) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        INSERT INTO providers (participant_id, name, city, contact)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query, p.ParticipantID, p.Name, p.City, p.Contact).
		Scan(&p.ID, &p.CreatedAt)
}

func (s *Storage) CityHasProviders(ctx context.Context, city string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM providers WHERE LOWER(city) = LOWER($1))`
	err := s.db.GetContext(ctx, &exists, query, city)
	return exists, err
}

// ProviderRecipients возвращает получателя на каждую регистрацию исполнителя в городе.
// Участник, зарегистрированный дважды, встречается дважды.
func (s *Storage) ProviderRecipients(ctx context.Context, city string) ([]int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT participant_id
        FROM providers
        WHERE LOWER(city) = LOWER($1)
        ORDER BY id`
	recipients := []int64{}
	err := s.db.SelectContext(ctx, &recipients, query, city)
	return recipients, err
}

// Order (Заказ)

func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        INSERT INTO orders (participant_id, description, city)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query, o.ParticipantID, o.Description, o.City).
		Scan(&o.ID, &o.CreatedAt)
}

func (s *Storage) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	o := &models.Order{}
	query := `
        SELECT id, participant_id, description, city, executor_id, created_at
        FROM orders WHERE id = $1`
	if err := s.db.GetContext(ctx, o, query, id); err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// GetOwnedOrder читает заказ только если он принадлежит owner
func (s *Storage) GetOwnedOrder(ctx context.Context, id, owner int64) (*models.Order, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	o := &models.Order{}
	query := `
        SELECT id, participant_id, description, city, executor_id, created_at
        FROM orders WHERE id = $1 AND participant_id = $2`
	if err := s.db.GetContext(ctx, o, query, id, owner); err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

// AssignExecutor закрепляет исполнителя одним условным UPDATE:
// строка меняется только пока executor_id IS NULL.
func (s *Storage) AssignExecutor(ctx context.Context, orderID, owner, providerID int64) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        UPDATE orders
        SET executor_id = $1
        WHERE id = $2 AND participant_id = $3 AND executor_id IS NULL`
	res, err := s.db.ExecContext(ctx, query, providerID, orderID, owner)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyAssigned
	}
	return nil
}

// OpenOrdersWithBids - заказы владельца без исполнителя, на которые есть предложения
func (s *Storage) OpenOrdersWithBids(ctx context.Context, owner int64) ([]models.Order, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT o.id, o.participant_id, o.description, o.city, o.executor_id, o.created_at
        FROM orders o
        WHERE o.participant_id = $1
          AND o.executor_id IS NULL
          AND EXISTS (SELECT 1 FROM bids b WHERE b.order_id = o.id)
        ORDER BY o.created_at DESC`
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, owner)
	return orders, err
}

// Bid (Предложение)

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        INSERT INTO bids (order_id, provider_id, price, details)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return s.db.QueryRowContext(ctx, query, b.OrderID, b.ProviderID, b.Price, b.Details).
		Scan(&b.ID, &b.CreatedAt)
}

// Имя и город берутся из последней регистрации исполнителя; связь bid -> provider
// не является внешним ключом, поэтому значения могут быть NULL.
const bidViewColumns = `
            b.id, b.order_id, b.provider_id, b.price, b.details, b.created_at,
            p.name AS provider_name, p.city AS provider_city`

const latestProviderJoin = `
        LEFT JOIN LATERAL (
            SELECT name, city FROM providers
            WHERE participant_id = b.provider_id
            ORDER BY created_at DESC, id DESC
            LIMIT 1
        ) p ON TRUE`

func (s *Storage) BidsForOrder(ctx context.Context, orderID int64) ([]models.BidView, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT` + bidViewColumns + `
        FROM bids b` + latestProviderJoin + `
        WHERE b.order_id = $1
        ORDER BY b.created_at ASC, b.id ASC`
	bids := []models.BidView{}
	err := s.db.SelectContext(ctx, &bids, query, orderID)
	return bids, err
}

// BidsForOpenOrders - предложения по списку заказов, исключая уже назначенные
func (s *Storage) BidsForOpenOrders(ctx context.Context, orderIDs []int64) ([]models.BidView, error) {
	if len(orderIDs) == 0 {
		return []models.BidView{}, nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT` + bidViewColumns + `
        FROM bids b
        JOIN orders o ON o.id = b.order_id` + latestProviderJoin + `
        WHERE b.order_id = ANY($1)
          AND o.executor_id IS NULL
        ORDER BY b.order_id, b.created_at ASC, b.id ASC`
	bids := []models.BidView{}
	err := s.db.SelectContext(ctx, &bids, query, pq.Array(orderIDs))
	return bids, err
}

// LatestBid - последнее предложение исполнителя по заказу
func (s *Storage) LatestBid(ctx context.Context, orderID, providerID int64) (*models.BidView, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT` + bidViewColumns + `
        FROM bids b` + latestProviderJoin + `
        WHERE b.order_id = $1 AND b.provider_id = $2
        ORDER BY b.created_at DESC, b.id DESC
        LIMIT 1`
	b := &models.BidView{}
	if err := s.db.GetContext(ctx, b, query, orderID, providerID); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// OtherBidders - все участники, делавшие предложения по заказу, кроме exclude
func (s *Storage) OtherBidders(ctx context.Context, orderID, exclude int64) ([]int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `
        SELECT DISTINCT provider_id
        FROM bids
        WHERE order_id = $1 AND provider_id <> $2
        ORDER BY provider_id`
	bidders := []int64{}
	err := s.db.SelectContext(ctx, &bidders, query, orderID, exclude)
	return bidders, err
}

// Схема (админ)

func (s *Storage) TableExists(ctx context.Context, table string) (bool, error) {
	if !ValidIdentifier(table) {
		return false, ErrInvalidIdentifier
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )`
	err := s.db.GetContext(ctx, &exists, query, strings.ToLower(table))
	return exists, err
}

func (s *Storage) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return false, ErrInvalidIdentifier
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
        )`
	err := s.db.GetContext(ctx, &exists, query, strings.ToLower(table), strings.ToLower(column))
	return exists, err
}

// RenameColumn - параметризовать DDL нельзя, поэтому имена проходят
// ValidIdentifier и экранируются pq.QuoteIdentifier.
func (s *Storage) RenameColumn(ctx context.Context, table, oldName, newName string) error {
	if !ValidIdentifier(table) || !ValidIdentifier(oldName) || !ValidIdentifier(newName) {
		return ErrInvalidIdentifier
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		quote(table), quote(oldName), quote(newName))
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Storage) AddTextColumn(ctx context.Context, table, column string) error {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return ErrInvalidIdentifier
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quote(table), quote(column))
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Постгрес сворачивает имена без кавычек в нижний регистр; проверки существования
// идут в нижнем регистре, значит и DDL должен.
func quote(name string) string {
	return pq.QuoteIdentifier(strings.ToLower(name))
}

// ErrorText возвращает текст ошибки, который БД вернула на DDL
func ErrorText(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return err.Error()
}

// IsUndefinedTable - ошибка "relation does not exist"
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}
