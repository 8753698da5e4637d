package workflow

import (
	"context"

	"printmatch/internal/matching"
	"printmatch/models"
)

// StorageInterface - запросы к каталогу, которые выполняют сами сценарии
type StorageInterface interface {
	CreateProvider(ctx context.Context, p *models.Provider) error
	CityHasProviders(ctx context.Context, city string) (bool, error)

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)

	CreateBid(ctx context.Context, b *models.Bid) error

	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	RenameColumn(ctx context.Context, table, oldName, newName string) error
	AddTextColumn(ctx context.Context, table, column string) error
}

// Matcher - движок подбора исполнителей (matching.Engine)
type Matcher interface {
	FanOut(ctx context.Context, order models.Order) (matching.FanOutReport, error)
	NotifyBids(ctx context.Context, order models.Order) (bool, error)
	Select(ctx context.Context, chooser, orderID, providerID int64) (*matching.Selection, error)
	ListOpen(ctx context.Context, owner int64) ([]matching.OrderBids, error)
}

var _ Matcher = (*matching.Engine)(nil)

// AdminSet - участники, которым разрешены изменения схемы
type AdminSet map[int64]struct{}

func NewAdminSet(ids ...int64) AdminSet {
	s := make(AdminSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s AdminSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}
