package handlers

import (
	"context"

	"printmatch/internal/dispatch"
	"printmatch/internal/workflow"
	"printmatch/models"
)

// StorageInterface - чтение заказов и предложений для HTTP
type StorageInterface interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	BidsForOrder(ctx context.Context, orderID int64) ([]models.BidView, error)
}

// Dispatcher - маршрутизатор событий участников (workflow.Router)
type Dispatcher interface {
	Dispatch(ctx context.Context, ev workflow.Event) (dispatch.Message, error)
}
