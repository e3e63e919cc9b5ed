package purchasing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitionMatrix(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusPendingReview, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusApproved, false},
		{StatusDraft, StatusSent, false},
		{StatusPendingReview, StatusPendingApproval, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusCancelled, true},
		{StatusPendingReview, StatusApproved, false},
		{StatusPendingApproval, StatusApproved, true},
		{StatusPendingApproval, StatusRejected, true},
		{StatusPendingApproval, StatusCancelled, true},
		{StatusPendingApproval, StatusSent, false},
		{StatusApproved, StatusSent, true},
		{StatusApproved, StatusCancelled, false},
		{StatusApproved, StatusRejected, false},
		{StatusSent, StatusConfirmed, true},
		{StatusSent, StatusCancelled, false},
		{StatusConfirmed, StatusPartiallyDelivered, true},
		{StatusConfirmed, StatusDelivered, true},
		{StatusConfirmed, StatusCancelled, false},
		{StatusPartiallyDelivered, StatusPartiallyDelivered, true},
		{StatusPartiallyDelivered, StatusDelivered, true},
		{StatusPartiallyDelivered, StatusCancelled, false},
		{StatusDelivered, StatusDraft, false},
		{StatusRejected, StatusPendingReview, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, tc := range cases {
		got := tc.from.CanTransitionTo(tc.to)
		require.Equalf(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusRejected, StatusCancelled} {
		require.Truef(t, s.IsTerminal(), "%s should be terminal", s)
		for _, target := range []Status{
			StatusDraft, StatusPendingReview, StatusPendingApproval, StatusApproved,
			StatusSent, StatusConfirmed, StatusPartiallyDelivered, StatusDelivered,
			StatusRejected, StatusCancelled,
		} {
			require.Falsef(t, s.CanTransitionTo(target), "%s -> %s should be blocked", s, target)
		}
	}
	require.False(t, StatusDraft.IsTerminal())
	require.False(t, StatusPartiallyDelivered.IsTerminal())
}

func TestStatusGuards(t *testing.T) {
	require.True(t, StatusDraft.CanEdit())
	require.False(t, StatusPendingReview.CanEdit())

	require.True(t, StatusDraft.CanDelete())
	require.False(t, StatusCancelled.CanDelete())

	require.True(t, StatusDraft.CanCancel())
	require.True(t, StatusPendingReview.CanCancel())
	require.True(t, StatusPendingApproval.CanCancel())
	require.False(t, StatusApproved.CanCancel())
	require.False(t, StatusSent.CanCancel())

	require.True(t, StatusConfirmed.CanReceive())
	require.True(t, StatusPartiallyDelivered.CanReceive())
	require.False(t, StatusSent.CanReceive())
	require.False(t, StatusDelivered.CanReceive())

	require.False(t, Status("UNKNOWN").IsValid())
	require.True(t, StatusPendingApproval.IsValid())
}

func TestLineItemRemaining(t *testing.T) {
	line := LineItem{
		QuantityOrdered:  decimal.NewFromInt(100),
		QuantityReceived: decimal.NewFromInt(60),
		UnitPrice:        decimal.NewFromInt(500),
	}
	require.True(t, line.Remaining().Equal(decimal.NewFromInt(40)))
	require.False(t, line.FullyReceived())
	require.True(t, line.ReceivedValue().Equal(decimal.NewFromInt(30000)))

	line.QuantityReceived = decimal.NewFromInt(100)
	require.True(t, line.Remaining().IsZero())
	require.True(t, line.FullyReceived())

	// Legacy rows can hold receipts beyond the ordered quantity.
	line.QuantityReceived = decimal.NewFromInt(120)
	require.True(t, line.Remaining().IsZero())
	require.True(t, line.FullyReceived())
}
