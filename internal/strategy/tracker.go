package strategy

import (
	"fmt"

	"github.com/songzhibin97/seesaw/internal/models"
)

// OrderTracker keeps the last order placed on a market and every order ever
// placed, keyed by exchange order ID. It is owned by a single engine.
type OrderTracker struct {
	current *models.OrderRecord
	history map[string]models.OrderRecord
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{
		history: make(map[string]models.OrderRecord),
	}
}

// Current returns the last recorded order; ok is false before the first order.
func (t *OrderTracker) Current() (order models.OrderRecord, ok bool) {
	if t.current == nil {
		return models.OrderRecord{}, false
	}
	return *t.current, true
}

// Lookup returns a recorded order by ID.
func (t *OrderTracker) Lookup(id string) (models.OrderRecord, bool) {
	o, ok := t.history[id]
	return o, ok
}

// Len returns the number of recorded orders.
func (t *OrderTracker) Len() int {
	return len(t.history)
}

// CheckNext returns ErrConsecutiveSide if an order on side may not follow the current order.
func (t *OrderTracker) CheckNext(side models.OrderSide) error {
	if !side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if t.current != nil && t.current.Side == side {
		return fmt.Errorf("%w: last order %s is %s", ErrConsecutiveSide, t.current.ID, side)
	}
	return nil
}

// Record inserts order into the history and makes it the current order.
func (t *OrderTracker) Record(order models.OrderRecord) error {
	if err := t.CheckNext(order.Side); err != nil {
		return err
	}
	if _, exists := t.history[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID)
	}

	t.history[order.ID] = order
	t.current = &order
	return nil
}
