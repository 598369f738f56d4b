package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/labor-engine/store/postgres"
	"github.com/warp/labor-engine/store/storetest"
)

// Set LABOR_TEST_DATABASE_URL to a disposable database to run this suite.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("LABOR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LABOR_TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) storetest.Store {
		t.Helper()
		ctx := context.Background()
		s, err := postgres.New(ctx, url)
		require.NoError(t, err)
		require.NoError(t, s.Truncate(ctx))
		t.Cleanup(func() { s.Close() })
		return s
	})
}
