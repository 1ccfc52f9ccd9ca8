package types

import "time"

// Origin tags distinguish scraped records from manually authored ones in the
// shared publicaciones table.
const (
	OriginFacebook = "Facebook"
	OriginManual   = "Admin"
)

// ImageMode controls how a source's post image is persisted.
type ImageMode string

const (
	// ImageModeBytes downloads the image and stores the raw bytes.
	ImageModeBytes ImageMode = "bytes"
	// ImageModeURL stores only the scraped image URL.
	ImageModeURL ImageMode = "url"
)

// Valid reports whether m is a known image mode.
func (m ImageMode) Valid() bool {
	return m == ImageModeBytes || m == ImageModeURL
}

// Source is one page the ingestion pipeline scrapes
type Source struct {
	Name      string    `toml:"name" json:"name"`
	URL       string    `toml:"url" json:"url"`
	ImageMode ImageMode `toml:"image_mode" json:"image_mode"`
}

// PostDraft is what the extractor pulls off the rendered page
type PostDraft struct {
	Text        string    `json:"text"`
	ImageURL    string    `json:"image_url"` // empty when the post has no image
	CollectedAt time.Time `json:"collected_at"`
}

// PostRecord is the normalized unit handed to storage
type PostRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Image       []byte    `json:"-"`
	ImageURL    string    `json:"image_url,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
	Origin      string    `json:"origin"`
}

// HasImage reports whether the record carries downloaded image bytes.
func (r *PostRecord) HasImage() bool {
	return len(r.Image) > 0
}

// PostSummary is a stored post as returned by the read API. Image bytes are
// never part of a summary.
type PostSummary struct {
	ID       string    `json:"idpublicacion"`
	Title    string    `json:"titulo"`
	Content  string    `json:"contenido"`
	ImageURL string    `json:"foto_url,omitempty"`
	HasImage bool      `json:"tiene_foto"`
	Date     time.Time `json:"fecha"`
	Origin   string    `json:"creado_por"`
	Featured bool      `json:"destacada"`
	Active   bool      `json:"activa"`
}

// PostStats summarizes the publicaciones table.
type PostStats struct {
	Total        int        `json:"total_publicaciones"`
	Active       int        `json:"activas"`
	Archived     int        `json:"archivadas"`
	Featured     int        `json:"destacadas"`
	FromFacebook int        `json:"desde_facebook"`
	FromAdmin    int        `json:"desde_admin"`
	ThisMonth    int        `json:"este_mes"`
	LastPost     *time.Time `json:"ultima_publicacion"`
}

// OriginCount is the number of posts carrying one origin tag.
type OriginCount struct {
	Origin string `json:"origen" db:"origen"`
	Total  int    `json:"total" db:"total"`
}

// MonthCount is the number of posts dated in one calendar month.
type MonthCount struct {
	Year  int `json:"anio"`
	Month int `json:"mes"`
	Total int `json:"total"`
}
