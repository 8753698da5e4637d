package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Сущность Исполнителя (мастерская).
// ParticipantID - чат-идентификатор владельца; предложения и назначение
// ссылаются на исполнителя именно по нему.
type Provider struct {
	ID            int64     `db:"id" json:"id"`
	ParticipantID int64     `db:"participant_id" json:"participantId"`
	Name          string    `db:"name" json:"name"`
	City          string    `db:"city" json:"city"`
	Contact       string    `db:"contact" json:"contact"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Заказа
type Order struct {
	ID            int64         `db:"id" json:"id"`
	ParticipantID int64         `db:"participant_id" json:"participantId"`
	Description   string        `db:"description" json:"description"`
	City          string        `db:"city" json:"city"`
	ExecutorID    sql.NullInt64 `db:"executor_id" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}

// Assigned сообщает, закреплён ли за заказом исполнитель
func (o Order) Assigned() bool {
	return o.ExecutorID.Valid
}

// Сущность Предложения
type Bid struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"orderId"`
	ProviderID int64     `db:"provider_id" json:"providerId"`
	Price      string    `db:"price" json:"price"`
	Details    string    `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// BidView - предложение вместе с последней регистрацией исполнителя (если есть)
type BidView struct {
	Bid
	ProviderName sql.NullString `db:"provider_name" json:"-"`
	ProviderCity sql.NullString `db:"provider_city" json:"-"`
}

// ProviderLabel возвращает имя исполнителя или "Provider <id>", если он не регистрировался
func (b BidView) ProviderLabel() string {
	if b.ProviderName.Valid {
		if name := strings.TrimSpace(b.ProviderName.String); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Provider %d", b.ProviderID)
}
