package db_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"printmatch/db"
	"printmatch/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T, timeout time.Duration) (*db.Storage, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return db.NewStorage(sqlx.NewDb(conn, "postgres"), timeout), mock
}

var (
	orderColumns = []string{"id", "participant_id", "description", "city", "executor_id", "created_at"}
	bidColumns   = []string{"id", "order_id", "provider_id", "price", "details", "created_at", "provider_name", "provider_city"}
	created      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestAssignExecutor(t *testing.T) {
	store, mock := newMock(t, 0)
	query := regexp.QuoteMeta("UPDATE orders SET executor_id = $1 WHERE id = $2 AND participant_id = $3 AND executor_id IS NULL")

	mock.ExpectExec(query).WithArgs(int64(101), int64(7), int64(202)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AssignExecutor(context.Background(), 7, 202, 101))

	mock.ExpectExec(query).WithArgs(int64(102), int64(7), int64(202)).WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.AssignExecutor(context.Background(), 7, 202, 102)
	require.ErrorIs(t, err, db.ErrAlreadyAssigned)
}

func TestGetOwnedOrder(t *testing.T) {
	store, mock := newMock(t, 0)
	query := regexp.QuoteMeta("FROM orders WHERE id = $1 AND participant_id = $2")

	mock.ExpectQuery(query).WithArgs(int64(7), int64(202)).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(7, 202, "gear", "Springfield", nil, created))
	o, err := store.GetOwnedOrder(context.Background(), 7, 202)
	require.NoError(t, err)
	require.Equal(t, int64(7), o.ID)
	require.False(t, o.Assigned())

	mock.ExpectQuery(query).WithArgs(int64(7), int64(303)).WillReturnRows(sqlmock.NewRows(orderColumns))
	_, err = store.GetOwnedOrder(context.Background(), 7, 303)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestGetOrderAssigned(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(7, 202, "gear", "Springfield", 101, created))

	o, err := store.GetOrder(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, o.Assigned())
	require.Equal(t, int64(101), o.ExecutorID.Int64)
}

func TestCreateOrder(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (participant_id, description, city)")).
		WithArgs(int64(202), "gear", "Springfield").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, created))

	o := models.Order{ParticipantID: 202, Description: "gear", City: "Springfield"}
	require.NoError(t, store.CreateOrder(context.Background(), &o))
	require.Equal(t, int64(9), o.ID)
	require.Equal(t, created, o.CreatedAt)
}

func TestProviderRecipients(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT participant_id FROM providers WHERE LOWER(city) = LOWER($1) ORDER BY id")).
		WithArgs("springfield").
		WillReturnRows(sqlmock.NewRows([]string{"participant_id"}).AddRow(101).AddRow(102).AddRow(101))

	ids, err := store.ProviderRecipients(context.Background(), "springfield")
	require.NoError(t, err)
	require.Equal(t, []int64{101, 102, 101}, ids)
}

func TestCityHasProviders(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM providers WHERE LOWER(city) = LOWER($1))")).
		WithArgs("Nowhere").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := store.CityHasProviders(context.Background(), "Nowhere")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBidsForOpenOrders(t *testing.T) {
	store, mock := newMock(t, 0)

	bids, err := store.BidsForOpenOrders(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, bids)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.order_id = ANY($1) AND o.executor_id IS NULL")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(bidColumns).
			AddRow(1, 7, 101, "10", "2 days", created, "Alpha", "Springfield").
			AddRow(2, 7, 999, "12", "", created, nil, nil))

	bids, err = store.BidsForOpenOrders(context.Background(), []int64{7, 8})
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "Alpha", bids[0].ProviderLabel())
	require.Equal(t, "Provider 999", bids[1].ProviderLabel())
}

func TestLatestBidNotFound(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.order_id = $1 AND b.provider_id = $2")).
		WithArgs(int64(7), int64(101)).
		WillReturnRows(sqlmock.NewRows(bidColumns))

	_, err := store.LatestBid(context.Background(), 7, 101)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestSchemaChecksLowercase(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("orders", "city").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.TableExists(context.Background(), "Orders")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.ColumnExists(context.Background(), "Orders", "CITY")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDDLQuotesIdentifiers(t *testing.T) {
	store, mock := newMock(t, 0)
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "orders" RENAME COLUMN "description" TO "summary"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "bids" ADD COLUMN "note" TEXT`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.RenameColumn(context.Background(), "Orders", "description", "Summary"))
	require.NoError(t, store.AddTextColumn(context.Background(), "bids", "Note"))
}

func TestInvalidIdentifiersNeverReachDatabase(t *testing.T) {
	store, _ := newMock(t, 0)
	ctx := context.Background()

	for _, bad := range []string{"", "1orders", "orders; DROP TABLE bids", `a"b`, "naïve", "two words"} {
		_, err := store.TableExists(ctx, bad)
		require.ErrorIs(t, err, db.ErrInvalidIdentifier, bad)
		_, err = store.ColumnExists(ctx, "orders", bad)
		require.ErrorIs(t, err, db.ErrInvalidIdentifier, bad)
		require.ErrorIs(t, store.RenameColumn(ctx, "orders", "city", bad), db.ErrInvalidIdentifier, bad)
		require.ErrorIs(t, store.AddTextColumn(ctx, bad, "note"), db.ErrInvalidIdentifier, bad)
	}
}

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"orders", "_tmp", "Col9", "a_b_c"} {
		require.True(t, db.ValidIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "9a", "a-b", "a.b", "a b"} {
		require.False(t, db.ValidIdentifier(bad), bad)
	}
}

func TestErrorHelpers(t *testing.T) {
	pqErr := &pq.Error{Code: "42P01", Message: `relation "orders" does not exist`}
	require.True(t, db.IsUndefinedTable(pqErr))
	require.Equal(t, `relation "orders" does not exist`, db.ErrorText(pqErr))

	wrapped := errors.Join(errors.New("create order"), pqErr)
	require.True(t, db.IsUndefinedTable(wrapped))

	plain := errors.New("connection reset")
	require.False(t, db.IsUndefinedTable(plain))
	require.Equal(t, "connection reset", db.ErrorText(plain))
}

func TestQueryTimeout(t *testing.T) {
	store, mock := newMock(t, 10*time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs(int64(7)).
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := store.GetOrder(context.Background(), 7)
	require.Error(t, err)
	require.NotErrorIs(t, err, db.ErrNotFound)
}
