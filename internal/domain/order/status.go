package order

import (
	"fmt"
	"slices"

	"github.com/example/ec-wallet-shop/internal/model"
)

// validTransitions defines allowed state transitions
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:    {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed:  {model.OrderProcessing, model.OrderCancelled},
	model.OrderProcessing: {model.OrderShipped, model.OrderCancelled},
	model.OrderShipped:    {model.OrderDelivered, model.OrderCancelled},
	model.OrderDelivered:  {model.OrderRefunded},
	model.OrderCancelled:  {}, // terminal state
	model.OrderRefunded:   {}, // terminal state
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(allowed, to)
}

// AllowedTransitions returns the statuses reachable from s.
func AllowedTransitions(s model.OrderStatus) []model.OrderStatus {
	return slices.Clone(validTransitions[s])
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.OrderStatus) bool {
	return len(validTransitions[s]) == 0
}

// transitionError returns an appropriate error for an invalid transition
func transitionError(from, to model.OrderStatus) error {
	switch {
	case IsTerminal(from):
		return fmt.Errorf("%w: order is already %s", ErrIllegalTransition, from)
	case from == to:
		return fmt.Errorf("%w: order is already %s", ErrIllegalTransition, from)
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrIllegalTransition, from, to)
	}
}
