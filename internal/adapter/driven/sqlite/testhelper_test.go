package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// setupTestDB opens a named shared in-memory database with the schema applied.
// The name comes from t.Name() so parallel tests never share state.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL does not apply to in-memory databases, so journal_mode is omitted.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	db, err := openDual(context.Background(), dsn, dsn)
	require.NoError(t, err, "open test db")

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// addTestAccount inserts an account so resource and run rows satisfy their
// foreign keys.
func addTestAccount(t *testing.T, db *DB, id string) {
	t.Helper()
	err := NewAccountRepo(db).Create(context.Background(), model.Account{
		ID:       id,
		Name:     "test " + id,
		Region:   "us-east-1",
		IsActive: true,
	}, nil)
	require.NoError(t, err)
}

func bucket(id string, attrs model.Attributes) model.NormalizedResource {
	return model.NormalizedResource{
		Kind:       model.ServiceS3,
		ExternalID: id,
		Name:       id,
		Region:     "us-east-1",
		Attributes: attrs,
	}
}

var (
	t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t1.Add(time.Hour)
)
