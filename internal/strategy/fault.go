package strategy

import (
	"errors"
	"fmt"

	"github.com/songzhibin97/seesaw/internal/trading"
)

var (
	ErrDuplicateOrderID  = errors.New("order id already recorded")
	ErrConsecutiveSide   = errors.New("two successive orders on the same side")
	ErrInvalidSide       = errors.New("invalid order side")
	ErrNonPositivePrice  = errors.New("price must be positive")
	ErrNonPositiveBudget = errors.New("counter currency budget must be positive")
	ErrNegativeGain      = errors.New("minimum gain fraction must not be negative")
	ErrUntrackedOrder    = errors.New("open order missing from the order history")
)

// FaultKind classifies a failed cycle.
type FaultKind int

const (
	// FaultNetwork: the exchange could not be reached; retry on the next cycle.
	FaultNetwork FaultKind = iota + 1
	// FaultAPI: the exchange rejected a call.
	FaultAPI
	// FaultInvariant: the state machine or the exchange broke an invariant.
	FaultInvariant
	// FaultInvalidInput: market data unusable for the calculators.
	FaultInvalidInput
)

func (k FaultKind) String() string {
	switch k {
	case FaultNetwork:
		return "network"
	case FaultAPI:
		return "api"
	case FaultInvariant:
		return "invariant"
	case FaultInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Fault is the error returned by Engine.RunCycle. Only network faults are
// recoverable; every other kind means the market must stop trading.
type Fault struct {
	Kind     FaultKind
	MarketID string
	Op       string
	Err      error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("strategy %s fault on %s during %s: %v", f.Kind, f.MarketID, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func (f *Fault) Recoverable() bool { return f.Kind == FaultNetwork }

// IsFatal reports whether err should stop scheduling for the market.
// Errors that are not a *Fault are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var f *Fault
	if errors.As(err, &f) {
		return !f.Recoverable()
	}
	return true
}

// classify maps a capability error onto a fault kind. Anything that is not
// a network error is handled like an exchange rejection.
func classify(err error) FaultKind {
	if trading.IsNetworkError(err) {
		return FaultNetwork
	}
	return FaultAPI
}
