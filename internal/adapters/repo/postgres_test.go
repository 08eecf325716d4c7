package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

func TestNotFoundMapsNoRows(t *testing.T) {
	err := notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "launch %s", "l-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Contains(t, err.Error(), "launch l-1")

	other := errors.New("conn reset")
	require.Equal(t, other, notFound(other, "launch %s", "l-1"))
	require.NoError(t, notFound(nil, "launch %s", "l-1"))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
