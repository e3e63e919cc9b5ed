package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationEchoesOffset(t *testing.T) {
	p := NewPagination(30, 20, 45)
	require.Equal(t, 30, p.Offset)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 45, p.Total)
	require.Equal(t, 3, p.TotalPages)

	// Offsets that are not page-aligned must survive unchanged.
	p = NewPagination(7, 20, 45)
	require.Equal(t, 7, p.Offset)

	p = NewPagination(-5, 0, 0)
	require.Equal(t, 0, p.Offset)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 0, p.TotalPages)
}
