package fulfillment

import (
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
)

// transitions is the exhaustive table of legal dropship-order status moves.
// Delivered, cancelled and refunded have no outgoing edges. Issue is the
// parking state an operator resolves by moving the order back onto the happy
// path or cancelling it.
var transitions = map[enums.DropshipOrderStatus][]enums.DropshipOrderStatus{
	enums.DropshipOrderStatusPending: {
		enums.DropshipOrderStatusPlaced,
		enums.DropshipOrderStatusCancelled,
		enums.DropshipOrderStatusIssue,
	},
	enums.DropshipOrderStatusPlaced: {
		enums.DropshipOrderStatusConfirmed,
		enums.DropshipOrderStatusShipped,
		enums.DropshipOrderStatusCancelled,
		enums.DropshipOrderStatusIssue,
	},
	enums.DropshipOrderStatusConfirmed: {
		enums.DropshipOrderStatusShipped,
		enums.DropshipOrderStatusCancelled,
		enums.DropshipOrderStatusIssue,
	},
	enums.DropshipOrderStatusShipped: {
		enums.DropshipOrderStatusDelivered,
		enums.DropshipOrderStatusIssue,
	},
	enums.DropshipOrderStatusDelivered: nil,
	enums.DropshipOrderStatusCancelled: nil,
	enums.DropshipOrderStatusRefunded:  nil,
	enums.DropshipOrderStatusIssue: {
		enums.DropshipOrderStatusPending,
		enums.DropshipOrderStatusPlaced,
		enums.DropshipOrderStatusConfirmed,
		enums.DropshipOrderStatusShipped,
		enums.DropshipOrderStatusCancelled,
	},
}

// CanTransition reports whether the move appears in the transition table.
func CanTransition(from, to enums.DropshipOrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates a status move and returns a descriptive state-conflict
// error when the table forbids it. No state is mutated here; callers apply
// the change only on a nil return.
func Transition(from, to enums.DropshipOrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown dropship order status "+to.String())
	}
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is "+from.String()+" and can no longer change")
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move order from "+from.String()+" to "+to.String())
	}
	return nil
}
