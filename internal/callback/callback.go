// Package callback кодирует данные кнопок: тег действия и позиционные
// аргументы через двоеточие, например "select:12:345".
package callback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	ActionStartOrder = "start_order"
	ActionRespond    = "respond"
	ActionSelect     = "select"
)

const sep = ":"

var ErrMalformed = errors.New("malformed callback data")

// число аргументов для каждого действия
var arity = map[string]int{
	ActionStartOrder: 0,
	ActionRespond:    1,
	ActionSelect:     2,
}

// Callback - разобранные данные кнопки
type Callback struct {
	Action string
	Args   []int64
}

func StartOrder() string {
	return ActionStartOrder
}

func Respond(orderID int64) string {
	return encode(ActionRespond, orderID)
}

func Select(orderID, providerID int64) string {
	return encode(ActionSelect, orderID, providerID)
}

func encode(action string, args ...int64) string {
	parts := []string{action}
	for _, a := range args {
		parts = append(parts, strconv.FormatInt(a, 10))
	}
	return strings.Join(parts, sep)
}

// Parse проверяет тег, число аргументов и что каждый аргумент - положительное целое
func Parse(data string) (Callback, error) {
	parts := strings.Split(strings.TrimSpace(data), sep)
	action := parts[0]
	n, ok := arity[action]
	if !ok {
		return Callback{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, action)
	}
	if len(parts)-1 != n {
		return Callback{}, fmt.Errorf("%w: %s expects %d arguments", ErrMalformed, action, n)
	}

	cb := Callback{Action: action, Args: make([]int64, 0, n)}
	for _, raw := range parts[1:] {
		v, err := PositiveID(raw)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cb.Args = append(cb.Args, v)
	}
	return cb, nil
}

var ErrInvalidID = errors.New("identifier must be a positive integer")

// PositiveID разбирает идентификатор: только десятичное целое больше нуля
func PositiveID(raw string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidID
	}
	return v, nil
}
