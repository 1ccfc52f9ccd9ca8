package store

import (
	"database/sql"
	"time"

	"github.com/cgpvp/cgpvp/internal/types"
)

// postRow is a publicaciones row without the image bytes
type postRow struct {
	ID       string         `db:"idpublicacion"`
	Title    string         `db:"titulo"`
	Content  string         `db:"contenido"`
	ImageURL sql.NullString `db:"foto_url"`
	HasImage bool           `db:"tiene_foto"`
	Date     time.Time      `db:"fecha"`
	Origin   string         `db:"creado_por"`
	Featured bool           `db:"destacada"`
	Active   bool           `db:"activa"`
}

func (r postRow) summary() types.PostSummary {
	return types.PostSummary{
		ID:       r.ID,
		Title:    r.Title,
		Content:  r.Content,
		ImageURL: r.ImageURL.String,
		HasImage: r.HasImage,
		Date:     r.Date,
		Origin:   r.Origin,
		Featured: r.Featured,
		Active:   r.Active,
	}
}

func summaries(rows []postRow) []types.PostSummary {
	out := make([]types.PostSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out
}

// Sort orders accepted by ListPosts
const (
	OrderRecent = "reciente"
	OrderOldest = "antiguo"
	OrderTitle  = "titulo"
)

// ListParams filters and paginates ListPosts
type ListParams struct {
	Page         int
	PerPage      int
	FeaturedOnly bool
	ActiveOnly   bool
	Search       string
	OrderBy      string
}

// ValidOrder reports whether o is a supported sort order.
func ValidOrder(o string) bool {
	switch o {
	case OrderRecent, OrderOldest, OrderTitle:
		return true
	}
	return false
}
