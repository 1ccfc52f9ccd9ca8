package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/store"
	"github.com/cgpvp/cgpvp/internal/types"
)

type handler struct {
	posts  PostReader
	now    func() time.Time
	logger *zap.SugaredLogger
}

// listResponse is the paginated listing body
type listResponse struct {
	Total int                 `json:"total"`
	Posts []types.PostSummary `json:"publicaciones"`
}

func (h *handler) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"version": Version,
		"endpoints": gin.H{
			"noticias":     "/api/noticias",
			"estadisticas": "/api/noticias/estadisticas",
			"health":       "/health",
			"metrics":      "/metrics",
		},
	})
}

func (h *handler) health(c *gin.Context) {
	if err := h.posts.Ping(c.Request.Context()); err != nil {
		h.logger.Warnf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
}

func (h *handler) list(c *gin.Context) {
	params, err := parseListParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	posts, total, err := h.posts.ListPosts(c.Request.Context(), params)
	if err != nil {
		h.serverError(c, "list posts", err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Total: total, Posts: nonNil(posts)})
}

func (h *handler) featured(c *gin.Context) {
	posts, err := h.posts.FeaturedPosts(c.Request.Context())
	if err != nil {
		h.serverError(c, "featured posts", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(posts))
}

// recent never fails the caller; the home page renders an empty strip instead
func (h *handler) recent(c *gin.Context) {
	n, err := intParam(c, "cantidad", 5, 1, 50)
	if err != nil {
		badRequest(c, err)
		return
	}

	posts, err := h.posts.RecentPosts(c.Request.Context(), n)
	if err != nil {
		h.logger.Errorf("Recent posts failed: %v", err)
		c.JSON(http.StatusOK, []types.PostSummary{})
		return
	}
	c.JSON(http.StatusOK, nonNil(posts))
}

func (h *handler) search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("termino_busqueda"))
	if term == "" {
		badRequest(c, errors.New("termino_busqueda is required"))
		return
	}

	posts, err := h.posts.SearchPosts(c.Request.Context(), term)
	if err != nil {
		h.serverError(c, "search posts", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(posts))
}

func (h *handler) get(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Publicación no encontrada"})
		return
	}
	if err != nil {
		h.serverError(c, "get post", err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *handler) photo(c *gin.Context) {
	data, err := h.posts.GetPostImage(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Publicación no encontrada"})
		return
	}
	if err != nil {
		h.serverError(c, "get photo", err)
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Esta publicación no tiene foto"})
		return
	}

	c.Header("Cache-Control", "max-age=3600")
	c.Data(http.StatusOK, imageContentType(data), data)
}

func (h *handler) stats(c *gin.Context) {
	stats, err := h.posts.Stats(c.Request.Context(), h.now())
	if err != nil {
		h.serverError(c, "compute stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// between lists posts dated from fecha_inicio to fecha_fin, both inclusive
func (h *handler) between(c *gin.Context) {
	from, err := dateParam(c, "fecha_inicio")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := dateParam(c, "fecha_fin")
	if err != nil {
		badRequest(c, err)
		return
	}
	if to.Before(from) {
		badRequest(c, errors.New("fecha_fin must not be before fecha_inicio"))
		return
	}

	posts, err := h.posts.PostsBetween(c.Request.Context(), from, to)
	if err != nil {
		h.serverError(c, "list posts by date", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(posts))
}

func (h *handler) byOrigin(c *gin.Context) {
	counts, err := h.posts.CountByOrigin(c.Request.Context())
	if err != nil {
		h.serverError(c, "count by origin", err)
		return
	}
	if counts == nil {
		counts = []types.OriginCount{}
	}
	c.JSON(http.StatusOK, counts)
}

func (h *handler) byMonth(c *gin.Context) {
	year, err := intParam(c, "anio", h.now().Year(), 2000, 9999)
	if err != nil {
		badRequest(c, err)
		return
	}

	counts, err := h.posts.CountByMonth(c.Request.Context(), year)
	if err != nil {
		h.serverError(c, "count by month", err)
		return
	}
	if counts == nil {
		counts = []types.MonthCount{}
	}
	c.JSON(http.StatusOK, counts)
}

// imageContentType sniffs data, defaulting to JPEG for unknown payloads
func imageContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

func parseListParams(c *gin.Context) (store.ListParams, error) {
	var (
		p   store.ListParams
		err error
	)
	if p.Page, err = intParam(c, "pagina", 1, 1, 1<<31-1); err != nil {
		return p, err
	}
	if p.PerPage, err = intParam(c, "cantidad_por_pagina", 9, 1, 100); err != nil {
		return p, err
	}
	if p.FeaturedOnly, err = flagParam(c, "solo_destacadas", false); err != nil {
		return p, err
	}
	if p.ActiveOnly, err = flagParam(c, "solo_activas", true); err != nil {
		return p, err
	}
	p.Search = strings.TrimSpace(c.Query("busqueda"))
	p.OrderBy = c.DefaultQuery("ordenar_por", store.OrderRecent)
	if !store.ValidOrder(p.OrderBy) {
		return p, fmt.Errorf("ordenar_por must be one of %s, %s, %s", store.OrderRecent, store.OrderOldest, store.OrderTitle)
	}
	return p, nil
}

func intParam(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, lo, hi)
	}
	return v, nil
}

// dateParam reads a required YYYY-MM-DD query parameter
func dateParam(c *gin.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in YYYY-MM-DD format", name)
	}
	return t, nil
}

func flagParam(c *gin.Context, name string, def bool) (bool, error) {
	d := 0
	if def {
		d = 1
	}
	v, err := intParam(c, name, d, 0, 1)
	return v == 1, err
}

func nonNil(posts []types.PostSummary) []types.PostSummary {
	if posts == nil {
		return []types.PostSummary{}
	}
	return posts
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}

func (h *handler) serverError(c *gin.Context, op string, err error) {
	h.logger.Errorf("Failed to %s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"status":  "ERROR",
		"mensaje": "Error interno del servidor",
	})
}
