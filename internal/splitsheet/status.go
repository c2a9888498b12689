package splitsheet

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a splitsheet. It only moves forward.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingSignatures Status = "pending_signatures"
	StatusFullySigned       Status = "fully_signed"
	StatusCompleted         Status = "completed"
)

var statusOrder = map[Status]int{
	StatusDraft:             0,
	StatusPendingSignatures: 1,
	StatusFullySigned:       2,
	StatusCompleted:         3,
}

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusPendingSignatures, StatusFullySigned, StatusCompleted}
}

// ParseStatus converts a string into a Status if it matches a known value.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusOrder[status]
	return status, ok
}

// CanTransitionTo reports whether next is the single forward step after s.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	return ok && to == from+1
}

// Before reports whether s precedes other in the lifecycle.
func (s Status) Before(other Status) bool {
	return statusOrder[s] < statusOrder[other]
}

// Transition validates a move from s to next.
func (s Status) Transition(next Status) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s", s, next)
	}
	return nil
}

// PaymentStatus is the settlement state of the splitsheet fee.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFree    PaymentStatus = "free"
	PaymentFailed  PaymentStatus = "failed"
)

// ParsePaymentStatus converts a string into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch p := PaymentStatus(strings.ToLower(strings.TrimSpace(value))); p {
	case PaymentPending, PaymentPaid, PaymentFree, PaymentFailed:
		return p, true
	default:
		return "", false
	}
}

// Settled reports whether the fee no longer blocks release.
func (p PaymentStatus) Settled() bool {
	return p == PaymentPaid || p == PaymentFree
}

// CanBecome reports whether p may be replaced by next. A settled payment never
// regresses.
func (p PaymentStatus) CanBecome(next PaymentStatus) bool {
	if p.Settled() {
		return p == next
	}
	return true
}
