package purchasing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reconciliation summarises how much of a purchase order's contracted value
// has been received versus what is still outstanding.
type Reconciliation struct {
	PurchaseOrderID int64           `json:"purchase_order_id"`
	ReceivedValue   decimal.Decimal `json:"received_value"`
	PendingValue    decimal.Decimal `json:"pending_value"`
	DeliveryStatus  DeliveryStatus  `json:"delivery_status"`
	// OverReceived flags receipts beyond the contracted total. The pending
	// figure is clamped to zero for display; the flag keeps the data-quality
	// signal visible instead of hiding it behind a negative number.
	OverReceived    bool   `json:"over_received,omitempty"`
	ReceivedDisplay string `json:"received_display"`
	PendingDisplay  string `json:"pending_display"`
}

var moneyPrinter = message.NewPrinter(language.English)

// Reconcile computes received and pending values from the order's lines.
// Pure; it never mutates the order.
func Reconcile(po PurchaseOrder) Reconciliation {
	received := decimal.Zero
	for _, line := range po.Lines {
		received = received.Add(line.ReceivedValue())
	}
	pending := po.TotalAmount.Sub(received)
	over := pending.IsNegative()
	if over {
		pending = decimal.Zero
	}
	return Reconciliation{
		PurchaseOrderID: po.ID,
		ReceivedValue:   received,
		PendingValue:    pending,
		DeliveryStatus:  DeriveDeliveryStatus(po.Lines),
		OverReceived:    over,
		ReceivedDisplay: formatAmount(po.Currency, received),
		PendingDisplay:  formatAmount(po.Currency, pending),
	}
}

// DeriveDeliveryStatus is the sole authority for the delivery_status field:
// PENDING iff nothing received, COMPLETED iff every line fully received,
// PARTIAL otherwise.
func DeriveDeliveryStatus(lines []LineItem) DeliveryStatus {
	if len(lines) == 0 {
		return DeliveryPending
	}
	allZero := true
	allFull := true
	for _, line := range lines {
		if !line.QuantityReceived.IsZero() {
			allZero = false
		}
		if !line.FullyReceived() {
			allFull = false
		}
	}
	switch {
	case allZero:
		return DeliveryPending
	case allFull:
		return DeliveryCompleted
	default:
		return DeliveryPartial
	}
}

// formatAmount renders an amount with thousands grouping. The value stays a
// decimal string end to end; float64 would lose integer precision past 2^53.
func formatAmount(currency string, amount decimal.Decimal) string {
	fixed := amount.Round(2).StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	intPart, fracPart, _ := strings.Cut(strings.TrimPrefix(fixed, "-"), ".")

	var b strings.Builder
	if currency != "" {
		b.WriteString(currency)
		b.WriteByte(' ')
	}
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart))
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return moneyPrinter.Sprintf("%d", n)
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
