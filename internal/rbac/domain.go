// Package rbac gates workflow operations by actor permissions. Identity is
// established upstream by the console gateway; this package only answers
// what the actor may do.
package rbac

import "time"

// Permissions used by the purchasing workflow.
const (
	PermPurchasingView    = "purchasing.view"
	PermPurchasingEdit    = "purchasing.edit"
	PermPurchasingReview  = "purchasing.review"
	PermPurchasingApprove = "purchasing.approve"
	PermPurchasingReceive = "purchasing.receive"
)

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
