package purchasing

import (
	"github.com/shopspring/decimal"

	"github.com/mofad-energy/mofad-erp/internal/shared"
)

// CreatePurchaseOrderRequest is the JSON payload for creating a PRO.
type CreatePurchaseOrderRequest struct {
	Number      string                 `json:"number,omitempty" validate:"omitempty,max=40"`
	Supplier    string                 `json:"supplier" validate:"required,max=200"`
	Currency    string                 `json:"currency,omitempty" validate:"omitempty,len=3"`
	TotalAmount decimal.Decimal        `json:"total_amount,omitempty"`
	Notes       *string                `json:"notes,omitempty"`
	Lines       []PurchaseOrderLineReq `json:"lines" validate:"required,min=1,dive"`
}

// PurchaseOrderLineReq describes one requested line.
type PurchaseOrderLineReq struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	Description *string         `json:"description,omitempty"`
	UOM         string          `json:"uom" validate:"required,max=20"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineOrder   int             `json:"line_order" validate:"gte=0"`
}

// UpdatePurchaseOrderRequest edits a draft. Nil fields are untouched.
type UpdatePurchaseOrderRequest struct {
	Supplier    *string                 `json:"supplier,omitempty" validate:"omitempty,max=200"`
	TotalAmount *decimal.Decimal        `json:"total_amount,omitempty"`
	Notes       *string                 `json:"notes,omitempty"`
	Lines       *[]PurchaseOrderLineReq `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RecordDeliveryRequest records a received quantity against one line.
type RecordDeliveryRequest struct {
	LineID   int64           `json:"line_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ListResponse is the paginated listing envelope.
type ListResponse struct {
	Items      []PurchaseOrder   `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// DeliveryResponse returns the updated record plus its reconciliation.
type DeliveryResponse struct {
	PurchaseOrder  PurchaseOrder  `json:"purchase_order"`
	Reconciliation Reconciliation `json:"reconciliation"`
}

func (r CreatePurchaseOrderRequest) toInput() CreateInput {
	input := CreateInput{
		Number:      r.Number,
		Supplier:    r.Supplier,
		Currency:    r.Currency,
		TotalAmount: r.TotalAmount,
		Notes:       r.Notes,
		Lines:       make([]LineInput, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		input.Lines = append(input.Lines, line.toInput())
	}
	return input
}

func (r UpdatePurchaseOrderRequest) toInput() UpdateInput {
	input := UpdateInput{
		Supplier:    r.Supplier,
		TotalAmount: r.TotalAmount,
		Notes:       r.Notes,
	}
	if r.Lines != nil {
		lines := make([]LineInput, 0, len(*r.Lines))
		for _, line := range *r.Lines {
			lines = append(lines, line.toInput())
		}
		input.Lines = &lines
	}
	return input
}

func (l PurchaseOrderLineReq) toInput() LineInput {
	return LineInput{
		ProductID:   l.ProductID,
		Description: l.Description,
		UOM:         l.UOM,
		UnitPrice:   l.UnitPrice,
		Quantity:    l.Quantity,
		LineOrder:   l.LineOrder,
	}
}
