package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cgpvp/cgpvp/internal/types"
)

const postColumns = `
	idpublicacion, titulo, contenido, foto_url,
	(foto IS NOT NULL) AS tiene_foto,
	fecha, creado_por, destacada, activa`

// SearchLimit caps SearchPosts results
const SearchLimit = 50

// FeaturedLimit caps FeaturedPosts results
const FeaturedLimit = 3

// ListPosts returns one page of posts and the total number of matches.
func (s *Store) ListPosts(ctx context.Context, p ListParams) ([]types.PostSummary, int, error) {
	var (
		where []string
		args  []any
	)
	if p.FeaturedOnly {
		where = append(where, "destacada")
	}
	if p.ActiveOnly {
		where = append(where, "activa")
	}
	if term := strings.TrimSpace(p.Search); term != "" {
		where = append(where, "(LOWER(titulo) LIKE ? OR LOWER(contenido) LIKE ?)")
		pattern := likePattern(term)
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := s.db.Rebind(`SELECT COUNT(*) FROM publicaciones` + clause)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	page, perPage := p.Page, p.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 9
	}

	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones` + clause +
		` ORDER BY ` + orderClause(p.OrderBy) + ` LIMIT ? OFFSET ?`)
	args = append(args, perPage, (page-1)*perPage)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	return summaries(rows), total, nil
}

// RecentPosts returns the n newest active posts.
func (s *Store) RecentPosts(ctx context.Context, n int) ([]types.PostSummary, error) {
	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones
		WHERE activa
		ORDER BY fecha DESC, idpublicacion
		LIMIT ?`)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, n); err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	return summaries(rows), nil
}

// FeaturedPosts returns the newest active featured posts.
func (s *Store) FeaturedPosts(ctx context.Context) ([]types.PostSummary, error) {
	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones
		WHERE destacada AND activa
		ORDER BY fecha DESC, idpublicacion
		LIMIT ?`)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, FeaturedLimit); err != nil {
		return nil, fmt.Errorf("featured posts: %w", err)
	}
	return summaries(rows), nil
}

// SearchPosts returns active posts whose title or content contains term,
// case-insensitively.
func (s *Store) SearchPosts(ctx context.Context, term string) ([]types.PostSummary, error) {
	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones
		WHERE activa AND (LOWER(titulo) LIKE ? OR LOWER(contenido) LIKE ?)
		ORDER BY fecha DESC, idpublicacion
		LIMIT ?`)

	pattern := likePattern(term)
	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, pattern, pattern, SearchLimit); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return summaries(rows), nil
}

// GetPost returns one post by ID.
func (s *Store) GetPost(ctx context.Context, id string) (*types.PostSummary, error) {
	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones WHERE idpublicacion = ?`)

	var row postRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	summary := row.summary()
	return &summary, nil
}

// GetPostImage returns the stored image bytes of a post; nil when the post
// has no image.
func (s *Store) GetPostImage(ctx context.Context, id string) ([]byte, error) {
	query := s.db.Rebind(`SELECT foto FROM publicaciones WHERE idpublicacion = ?`)

	var image []byte
	if err := s.db.GetContext(ctx, &image, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post image %s: %w", id, err)
	}
	return image, nil
}

func orderClause(order string) string {
	switch order {
	case OrderOldest:
		return "fecha ASC, idpublicacion"
	case OrderTitle:
		return "titulo ASC, idpublicacion"
	default:
		return "fecha DESC, idpublicacion"
	}
}

// likePattern builds a lowercase contains match. % and _ in term keep their
// wildcard meaning.
func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
