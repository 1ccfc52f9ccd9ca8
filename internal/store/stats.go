package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cgpvp/cgpvp/internal/types"
)

// Post dates are stored in UTC, so every bound below is UTC too.

type statsRow struct {
	Total        int `db:"total"`
	Active       int `db:"activas"`
	Archived     int `db:"archivadas"`
	Featured     int `db:"destacadas"`
	FromFacebook int `db:"desde_facebook"`
	FromAdmin    int `db:"desde_admin"`
	ThisMonth    int `db:"este_mes"`
}

// Stats counts posts by state and origin. ThisMonth counts posts dated in
// the calendar month of now.
func (s *Store) Stats(ctx context.Context, now time.Time) (types.PostStats, error) {
	query := s.db.Rebind(`SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN activa THEN 1 ELSE 0 END), 0) AS activas,
		COALESCE(SUM(CASE WHEN activa THEN 0 ELSE 1 END), 0) AS archivadas,
		COALESCE(SUM(CASE WHEN destacada THEN 1 ELSE 0 END), 0) AS destacadas,
		COALESCE(SUM(CASE WHEN creado_por = ? THEN 1 ELSE 0 END), 0) AS desde_facebook,
		COALESCE(SUM(CASE WHEN creado_por = ? THEN 1 ELSE 0 END), 0) AS desde_admin,
		COALESCE(SUM(CASE WHEN fecha >= ? THEN 1 ELSE 0 END), 0) AS este_mes
		FROM publicaciones`)

	var row statsRow
	if err := s.db.GetContext(ctx, &row, query, types.OriginFacebook, types.OriginManual, monthStart(now)); err != nil {
		return types.PostStats{}, fmt.Errorf("post stats: %w", err)
	}

	stats := types.PostStats{
		Total:        row.Total,
		Active:       row.Active,
		Archived:     row.Archived,
		Featured:     row.Featured,
		FromFacebook: row.FromFacebook,
		FromAdmin:    row.FromAdmin,
		ThisMonth:    row.ThisMonth,
	}

	// Selected as a plain column so the driver returns a time, not text
	var last time.Time
	err := s.db.GetContext(ctx, &last, `SELECT fecha FROM publicaciones ORDER BY fecha DESC LIMIT 1`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return types.PostStats{}, fmt.Errorf("latest post date: %w", err)
	default:
		stats.LastPost = &last
	}
	return stats, nil
}

// PostsBetween returns active posts dated from the start of from's day up to
// the end of to's day.
func (s *Store) PostsBetween(ctx context.Context, from, to time.Time) ([]types.PostSummary, error) {
	lo := dayStart(from)
	hi := dayStart(to).AddDate(0, 0, 1)

	query := s.db.Rebind(`SELECT` + postColumns + ` FROM publicaciones
		WHERE activa AND fecha >= ? AND fecha < ?
		ORDER BY fecha DESC, idpublicacion`)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, lo, hi); err != nil {
		return nil, fmt.Errorf("posts between %s and %s: %w", lo.Format(time.DateOnly), to.Format(time.DateOnly), err)
	}
	return summaries(rows), nil
}

// CountByOrigin returns the number of posts per origin tag, largest first.
func (s *Store) CountByOrigin(ctx context.Context) ([]types.OriginCount, error) {
	counts := []types.OriginCount{}
	err := s.db.SelectContext(ctx, &counts, `SELECT creado_por AS origen, COUNT(*) AS total
		FROM publicaciones
		GROUP BY creado_por
		ORDER BY total DESC, origen`)
	if err != nil {
		return nil, fmt.Errorf("count by origin: %w", err)
	}
	return counts, nil
}

// CountByMonth returns the number of posts per month of year. Months without
// posts are left out.
func (s *Store) CountByMonth(ctx context.Context, year int) ([]types.MonthCount, error) {
	lo := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	hi := lo.AddDate(1, 0, 0)

	// Bucketed here, the two backends share no month extraction function
	query := s.db.Rebind(`SELECT fecha FROM publicaciones WHERE fecha >= ? AND fecha < ?`)
	var dates []time.Time
	if err := s.db.SelectContext(ctx, &dates, query, lo, hi); err != nil {
		return nil, fmt.Errorf("count by month %d: %w", year, err)
	}

	var perMonth [12]int
	for _, d := range dates {
		perMonth[d.UTC().Month()-1]++
	}

	counts := []types.MonthCount{}
	for i, n := range perMonth {
		if n > 0 {
			counts = append(counts, types.MonthCount{Year: year, Month: i + 1, Total: n})
		}
	}
	return counts, nil
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
