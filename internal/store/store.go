package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cgpvp/cgpvp/internal/types"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("post not found")

var (
	//go:embed schema/postgres.sql
	postgresSchema string
	//go:embed schema/sqlite.sql
	sqliteSchema string
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store handles all database operations
type Store struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	if driver == DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; an in-memory database also lives on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(db, logger), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger.Named("store")}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema and, on postgres, the upsert procedure.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const callUpsertProcedure = `CALL sp_insertar_actualizar_publicacion($1, $2, $3, $4, $5, $6, $7)`

const sqliteUpsert = `
	INSERT INTO publicaciones (idpublicacion, titulo, contenido, foto, fecha, creado_por, foto_url)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(idpublicacion) DO UPDATE SET
		titulo = excluded.titulo,
		contenido = excluded.contenido,
		foto = excluded.foto,
		foto_url = excluded.foto_url,
		fecha = excluded.fecha,
		creado_por = excluded.creado_por,
		actualizado = CURRENT_TIMESTAMP
`

// UpsertPost inserts the record or replaces the stored fields of the record
// with the same ID, in a single statement. The date is stored in UTC.
func (s *Store) UpsertPost(ctx context.Context, r *types.PostRecord) error {
	query := sqliteUpsert
	if s.db.DriverName() == DriverPostgres {
		query = callUpsertProcedure
	}

	// A typed nil slice would reach lib/pq as an empty bytea, not NULL
	var image any
	if r.HasImage() {
		image = r.Image
	}
	imageURL := sql.NullString{String: r.ImageURL, Valid: r.ImageURL != ""}

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Title,
		r.Content,
		image,
		r.CollectedAt.UTC(),
		r.Origin,
		imageURL,
	)
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", r.ID, err)
	}

	s.logger.Infow("Upserted post", "id", r.ID, "image_bytes", len(r.Image))
	return nil
}
