package strategy

import "github.com/songzhibin97/seesaw/internal/models"

// OpenOrderSet is the set of order IDs the exchange still reports as open.
type OpenOrderSet map[string]struct{}

func NewOpenOrderSet(ids ...string) OpenOrderSet {
	set := make(OpenOrderSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func OpenOrderSetOf(orders []models.OpenOrder) OpenOrderSet {
	set := make(OpenOrderSet, len(orders))
	for _, o := range orders {
		set[o.ID] = struct{}{}
	}
	return set
}

func (s OpenOrderSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IsFilled reports whether orderID has left the open order set.
// The exchange only tells us which orders are still open, so an order that
// is no longer listed is taken as filled.
func IsFilled(orderID string, open OpenOrderSet) bool {
	return !open.Contains(orderID)
}
