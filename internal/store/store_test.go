package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/types"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), DriverSQLite, ":memory:", zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRecord() *types.PostRecord {
	return &types.PostRecord{
		ID:          "f822102f4515609fc31927a84c6db7f8",
		Title:       "Hola mundo",
		Content:     "Hola mundo",
		Image:       []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A},
		CollectedAt: time.Date(2026, 10, 17, 1, 0, 12, 0, time.UTC),
		Origin:      types.OriginFacebook,
	}
}

func TestUpsertPost_SQLiteIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	rec := testRecord()

	require.NoError(t, s.UpsertPost(ctx, rec))
	first, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	firstImage, err := s.GetPostImage(ctx, rec.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpsertPost(ctx, rec))
	second, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	secondImage, err := s.GetPostImage(ctx, rec.ID)
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.Get(&count, `SELECT COUNT(*) FROM publicaciones`))
	assert.Equal(t, 1, count)

	assert.Equal(t, first, second)
	assert.Equal(t, firstImage, secondImage)
	assert.Equal(t, rec.Image, secondImage)
	assert.Equal(t, "Hola mundo", second.Title)
	assert.Equal(t, types.OriginFacebook, second.Origin)
	assert.True(t, second.HasImage)
	assert.True(t, second.Active)
	assert.False(t, second.Featured)
	assert.True(t, second.Date.Equal(rec.CollectedAt))
}

func TestUpsertPost_SQLiteReplacesFields(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	rec := testRecord()
	require.NoError(t, s.UpsertPost(ctx, rec))

	// Same ID, image gone and a later scrape time
	updated := *rec
	updated.Image = nil
	updated.CollectedAt = rec.CollectedAt.Add(24 * time.Hour)
	require.NoError(t, s.UpsertPost(ctx, &updated))

	got, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, got.HasImage)
	assert.True(t, got.Date.Equal(updated.CollectedAt))

	image, err := s.GetPostImage(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, image)
}

func TestUpsertPost_SQLiteImageURLMode(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	rec := testRecord()
	rec.Image = nil
	rec.ImageURL = "https://scontent.xx.fbcdn.net/v/photo.jpg"
	require.NoError(t, s.UpsertPost(ctx, rec))

	got, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ImageURL, got.ImageURL)
	assert.False(t, got.HasImage)
	assert.True(t, got.Date.Equal(rec.CollectedAt), "fecha = %s", got.Date)
	assert.Equal(t, types.OriginFacebook, got.Origin)

	var raw struct {
		ImageURL string `db:"foto_url"`
		Origin   string `db:"creado_por"`
	}
	require.NoError(t, s.db.Get(&raw, `SELECT foto_url, creado_por FROM publicaciones WHERE idpublicacion = ?`, rec.ID))
	assert.Equal(t, rec.ImageURL, raw.ImageURL)
	assert.Equal(t, types.OriginFacebook, raw.Origin)
}

func TestUpsertPost_SQLiteTextOnly(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	rec := testRecord()
	rec.Image = nil

	require.NoError(t, s.UpsertPost(ctx, rec))

	got, err := s.GetPost(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
	assert.False(t, got.HasImage)
	assert.Equal(t, types.OriginFacebook, got.Origin)
	assert.True(t, got.Date.Equal(rec.CollectedAt), "fecha = %s", got.Date)
}

func TestUpsertPost_PostgresCallsProcedure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(sqlx.NewDb(db, DriverPostgres), zap.NewNop().Sugar())
	rec := testRecord()

	mock.ExpectExec(regexp.QuoteMeta(callUpsertProcedure)).
		WithArgs(rec.ID, rec.Title, rec.Content, rec.Image, rec.CollectedAt, types.OriginFacebook, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpsertPost(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPost_PostgresNullImage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(sqlx.NewDb(db, DriverPostgres), zap.NewNop().Sugar())
	rec := testRecord()
	rec.Image = nil

	mock.ExpectExec(regexp.QuoteMeta(callUpsertProcedure)).
		WithArgs(rec.ID, rec.Title, rec.Content, nil, rec.CollectedAt, types.OriginFacebook, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.UpsertPost(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPost_PostgresError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(sqlx.NewDb(db, DriverPostgres), zap.NewNop().Sugar())

	mock.ExpectExec(regexp.QuoteMeta(callUpsertProcedure)).
		WillReturnError(errors.New("connection reset by peer"))

	err = s.UpsertPost(context.Background(), testRecord())
	assert.ErrorContains(t, err, "connection reset by peer")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_PostgresInstallsProcedure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(sqlx.NewDb(db, DriverPostgres), zap.NewNop().Sugar())

	mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE PROCEDURE sp_insertar_actualizar_publicacion")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SQLiteIsRepeatable(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
