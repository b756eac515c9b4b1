package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/scanmarket-backend/pkg/errors"
)

func TestNewPage(t *testing.T) {
	p, err := NewPage(0, 0)
	require.NoError(t, err)
	require.Equal(t, Page{Page: 1, Limit: DefaultLimit}, p)
	require.Equal(t, 0, p.Offset())

	p, err = NewPage(3, 10)
	require.NoError(t, err)
	require.Equal(t, 20, p.Offset())

	for _, tc := range []struct{ page, limit int }{{-1, 10}, {1, 101}, {1, -5}} {
		_, err := NewPage(tc.page, tc.limit)
		require.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "page=%d limit=%d: %v", tc.page, tc.limit, err)
	}
}

func TestLimit(t *testing.T) {
	l, err := Limit(0, DefaultMessageLimit)
	require.NoError(t, err)
	require.Equal(t, 50, l)

	l, err = Limit(MaxLimit, DefaultMessageLimit)
	require.NoError(t, err)
	require.Equal(t, MaxLimit, l)

	_, err = Limit(MaxLimit+1, DefaultMessageLimit)
	require.Error(t, err)
}
