// Package purchasing provides the purchase order approval and delivery
// reconciliation workflow.
package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a purchase order.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusPendingReview      Status = "PENDING_REVIEW"
	StatusPendingApproval    Status = "PENDING_APPROVAL"
	StatusApproved           Status = "APPROVED"
	StatusSent               Status = "SENT"
	StatusConfirmed          Status = "CONFIRMED"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusDelivered          Status = "DELIVERED"
	StatusRejected           Status = "REJECTED"
	StatusCancelled          Status = "CANCELLED"
)

// IsValid checks if the status is a known lifecycle status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusPendingApproval, StatusApproved,
		StatusSent, StatusConfirmed, StatusPartiallyDelivered, StatusDelivered,
		StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit checks if header and lines may still be modified.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanSubmit checks if the order can be submitted for review.
func (s Status) CanSubmit() bool {
	return s == StatusDraft
}

// CanReview checks if the order can be reviewed or review-rejected.
func (s Status) CanReview() bool {
	return s == StatusPendingReview
}

// CanApprove checks if the order can be approved or rejected.
func (s Status) CanApprove() bool {
	return s == StatusPendingApproval
}

// CanSend checks if the order can be dispatched to the supplier.
func (s Status) CanSend() bool {
	return s == StatusApproved
}

// CanConfirm checks if the supplier confirmation can be recorded.
func (s Status) CanConfirm() bool {
	return s == StatusSent
}

// CanReceive checks if deliveries may be recorded against the order.
func (s Status) CanReceive() bool {
	return s == StatusConfirmed || s == StatusPartiallyDelivered
}

// CanCancel checks if the order can be cancelled. Once dispatched the order
// is a commitment to the supplier and only the reject edges remain.
func (s Status) CanCancel() bool {
	return s == StatusDraft || s == StatusPendingReview || s == StatusPendingApproval
}

// CanDelete checks if the record may be removed entirely.
func (s Status) CanDelete() bool {
	return s == StatusDraft
}

// CanTransitionTo checks if the status can move to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusPendingReview || target == StatusCancelled
	case StatusPendingReview:
		return target == StatusPendingApproval || target == StatusRejected || target == StatusCancelled
	case StatusPendingApproval:
		return target == StatusApproved || target == StatusRejected || target == StatusCancelled
	case StatusApproved:
		return target == StatusSent
	case StatusSent:
		return target == StatusConfirmed
	case StatusConfirmed:
		return target == StatusPartiallyDelivered || target == StatusDelivered
	case StatusPartiallyDelivered:
		return target == StatusPartiallyDelivered || target == StatusDelivered
	default:
		return false
	}
}

// DeliveryStatus summarises line-item receipt state. It is derived from the
// lines and never stored independently of them.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryPartial   DeliveryStatus = "PARTIAL"
	DeliveryCompleted DeliveryStatus = "COMPLETED"
)

// RejectionStage identifies which pending stage rejected the order.
type RejectionStage string

const (
	RejectionStageReview   RejectionStage = "REVIEW"
	RejectionStageApproval RejectionStage = "APPROVAL"
)

// PurchaseOrder is the PRO domain model.
type PurchaseOrder struct {
	ID              int64           `json:"id" db:"id"`
	Number          string          `json:"number" db:"number"`
	Supplier        string          `json:"supplier" db:"supplier"`
	Status          Status          `json:"status" db:"status"`
	DeliveryStatus  DeliveryStatus  `json:"delivery_status" db:"delivery_status"`
	Currency        string          `json:"currency" db:"currency"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	RejectionStage  *RejectionStage `json:"rejection_stage,omitempty" db:"rejection_stage"`
	RejectionReason *string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedBy       int64           `json:"created_by" db:"created_by"`
	ReviewedBy      *int64          `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ApprovedBy      *int64          `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty" db:"submitted_at"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	SentAt          *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Lines           []LineItem      `json:"lines,omitempty" db:"-"`
}

// LineItem is a single ordered product on a purchase order.
type LineItem struct {
	ID               int64           `json:"id" db:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id" db:"purchase_order_id"`
	ProductID        int64           `json:"product_id" db:"product_id"`
	Description      *string         `json:"description,omitempty" db:"description"`
	UOM              string          `json:"uom" db:"uom"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered" db:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received" db:"quantity_received"`
	LineOrder        int             `json:"line_order" db:"line_order"`
}

// Remaining returns the quantity still outstanding on the line.
func (l LineItem) Remaining() decimal.Decimal {
	rem := l.QuantityOrdered.Sub(l.QuantityReceived)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// FullyReceived reports whether the line has been received in full.
func (l LineItem) FullyReceived() bool {
	return l.QuantityReceived.GreaterThanOrEqual(l.QuantityOrdered)
}

// ReceivedValue returns the monetary value received on this line.
func (l LineItem) ReceivedValue() decimal.Decimal {
	return l.QuantityReceived.Mul(l.UnitPrice)
}
