package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/MeterNews/internal/dedup"
	"github.com/deusflow/MeterNews/internal/news"
)

func newMockStore(t *testing.T, activeKeys ...string) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sent_stories").
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"story_key"})
	for _, k := range activeKeys {
		rows.AddRow(k)
	}
	mock.ExpectQuery("SELECT story_key FROM sent_stories WHERE sent_at >").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	store, err := NewPostgresStoreWithDB(context.Background(), db, 72*time.Hour)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreSeenUsesLoadedKeys(t *testing.T) {
	fp := dedup.Fingerprint{URLKey: "reuters.com/world/egypt-prepaid-meters", TitleKey: "egypt prepaid meters"}
	keys := Keys(fp)

	store, mock := newMockStore(t, keys[1])
	assert.True(t, store.Seen(fp))
	assert.False(t, store.Seen(dedup.Fingerprint{URLKey: "example.com/other"}))
	assert.Equal(t, 1, store.GetStats()["total_items"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRemember(t *testing.T) {
	store, mock := newMockStore(t)

	fp := dedup.Fingerprint{URLKey: "the-star.co.ke/kplc-smart-meters", TitleKey: "kenya power begins smart meter rollout"}
	rep := news.Article{URL: "https://www.the-star.co.ke/kplc-smart-meters", Title: "Kenya Power begins smart meter rollout"}
	groups := []dedup.DuplicateGroup{{
		Representative: rep,
		Members:        []news.Article{rep},
		Fingerprints:   []dedup.Fingerprint{fp},
	}}

	mock.ExpectBegin()
	for _, k := range Keys(fp) {
		mock.ExpectExec("INSERT INTO sent_stories").
			WithArgs(k, rep.Title, rep.URL, "run-7", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Remember(context.Background(), "run-7", groups))
	assert.True(t, store.Seen(fp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRememberRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	fp := dedup.Fingerprint{URLKey: "example.com/a"}
	groups := []dedup.DuplicateGroup{{
		Representative: news.Article{URL: "https://example.com/a", Title: "Prepaid meter tender"},
		Fingerprints:   []dedup.Fingerprint{fp},
	}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sent_stories").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.Remember(context.Background(), "run-8", groups)
	require.Error(t, err)
	assert.False(t, store.Seen(fp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRememberNothing(t *testing.T) {
	store, mock := newMockStore(t)
	require.NoError(t, store.Remember(context.Background(), "run-9", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCleanup(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM sent_stories WHERE sent_at <").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sent_stories").WillReturnError(errors.New("permission denied"))

	_, err = NewPostgresStoreWithDB(context.Background(), db, time.Hour)
	assert.ErrorContains(t, err, "failed to initialize schema")
}
