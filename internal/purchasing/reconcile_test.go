package purchasing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestReconcilePartialThenComplete(t *testing.T) {
	po := PurchaseOrder{
		ID:          7,
		Currency:    "NGN",
		TotalAmount: decimal.NewFromInt(50000),
		Lines: []LineItem{
			{
				ID:               1,
				UnitPrice:        decimal.NewFromInt(500),
				QuantityOrdered:  decimal.NewFromInt(100),
				QuantityReceived: decimal.NewFromInt(60),
			},
		},
	}

	recon := Reconcile(po)
	require.True(t, recon.ReceivedValue.Equal(decimal.NewFromInt(30000)))
	require.True(t, recon.PendingValue.Equal(decimal.NewFromInt(20000)))
	require.Equal(t, DeliveryPartial, recon.DeliveryStatus)
	require.False(t, recon.OverReceived)
	require.Equal(t, "NGN 30,000.00", recon.ReceivedDisplay)
	require.Equal(t, "NGN 20,000.00", recon.PendingDisplay)

	po.Lines[0].QuantityReceived = decimal.NewFromInt(100)
	recon = Reconcile(po)
	require.True(t, recon.ReceivedValue.Equal(decimal.NewFromInt(50000)))
	require.True(t, recon.PendingValue.IsZero())
	require.Equal(t, DeliveryCompleted, recon.DeliveryStatus)
	require.False(t, recon.OverReceived)
}

func TestReconcileNothingReceived(t *testing.T) {
	po := PurchaseOrder{
		ID:          3,
		Currency:    "NGN",
		TotalAmount: decimal.NewFromInt(1200),
		Lines: []LineItem{
			{UnitPrice: decimal.NewFromInt(400), QuantityOrdered: decimal.NewFromInt(3)},
		},
	}
	recon := Reconcile(po)
	require.True(t, recon.ReceivedValue.IsZero())
	require.True(t, recon.PendingValue.Equal(decimal.NewFromInt(1200)))
	require.Equal(t, DeliveryPending, recon.DeliveryStatus)
}

func TestReconcileClampsOverReceipt(t *testing.T) {
	// Header total below the line value, as left behind by a manual edit.
	po := PurchaseOrder{
		ID:          9,
		Currency:    "NGN",
		TotalAmount: decimal.NewFromInt(1000),
		Lines: []LineItem{
			{UnitPrice: decimal.NewFromInt(500), QuantityOrdered: decimal.NewFromInt(3), QuantityReceived: decimal.NewFromInt(3)},
		},
	}
	recon := Reconcile(po)
	require.True(t, recon.ReceivedValue.Equal(decimal.NewFromInt(1500)))
	require.True(t, recon.PendingValue.IsZero())
	require.True(t, recon.OverReceived)
	require.Equal(t, "NGN 0.00", recon.PendingDisplay)
}

func TestReconcileFractionalQuantities(t *testing.T) {
	price, _ := decimal.NewFromString("19.99")
	qty, _ := decimal.NewFromString("2.5")
	po := PurchaseOrder{
		Currency:    "NGN",
		TotalAmount: price.Mul(decimal.NewFromInt(10)),
		Lines: []LineItem{
			{UnitPrice: price, QuantityOrdered: decimal.NewFromInt(10), QuantityReceived: qty},
		},
	}
	recon := Reconcile(po)
	want, _ := decimal.NewFromString("49.975")
	require.True(t, recon.ReceivedValue.Equal(want))
	require.Equal(t, "NGN 49.98", recon.ReceivedDisplay)
}

func TestDeriveDeliveryStatus(t *testing.T) {
	ordered := decimal.NewFromInt(10)
	cases := []struct {
		name     string
		received []int64
		want     DeliveryStatus
	}{
		{"no lines", nil, DeliveryPending},
		{"untouched", []int64{0, 0}, DeliveryPending},
		{"one line partial", []int64{4, 0}, DeliveryPartial},
		{"one line full one empty", []int64{10, 0}, DeliveryPartial},
		{"all full", []int64{10, 10}, DeliveryCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var lines []LineItem
			for _, r := range tc.received {
				lines = append(lines, LineItem{
					QuantityOrdered:  ordered,
					QuantityReceived: decimal.NewFromInt(r),
				})
			}
			require.Equal(t, tc.want, DeriveDeliveryStatus(lines))
		})
	}
}

func TestFormatAmountKeepsDecimalPrecision(t *testing.T) {
	// 2^53 + 1 is not representable in float64.
	require.Equal(t, "NGN 9,007,199,254,740,993.00",
		formatAmount("NGN", decimal.RequireFromString("9007199254740993")))
	require.Equal(t, "NGN 123,456,789,012,345,678,901.45",
		formatAmount("NGN", decimal.RequireFromString("123456789012345678901.45")))
	require.Equal(t, "NGN -1,250.50", formatAmount("NGN", decimal.RequireFromString("-1250.5")))
	require.Equal(t, "NGN 0.08", formatAmount("NGN", decimal.RequireFromString("0.075")))
	require.Equal(t, "0.00", formatAmount("", decimal.Zero))
}
