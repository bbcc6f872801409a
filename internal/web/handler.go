// Package web serves the dashboard: a JSON API under /api and the
// server-rendered pages built from the same view state.
package web

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"animedash/internal/archive"
	"animedash/internal/dashboard"
	"animedash/internal/jikan"
)

const defaultReloadTimeout = 30 * time.Second

// RevisionLister is the read side of the archive.
type RevisionLister interface {
	List(ctx context.Context, limit int) ([]archive.Revision, error)
}

type Handler struct {
	Svc      *dashboard.Service
	Sessions *dashboard.Sessions
	Archive  RevisionLister // nil when archiving is disabled

	logger        *zap.Logger
	reloadTimeout time.Duration
	intn          func(n int) int
}

type Option func(*Handler)

func WithArchive(a RevisionLister) Option {
	return func(h *Handler) { h.Archive = a }
}

func WithReloadTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.reloadTimeout = d
		}
	}
}

// WithRand replaces the random source used by the random pick.
func WithRand(intn func(n int) int) Option {
	return func(h *Handler) { h.intn = intn }
}

func NewHandler(svc *dashboard.Service, sessions *dashboard.Sessions, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		Svc:           svc,
		Sessions:      sessions,
		logger:        logger,
		reloadTimeout: defaultReloadTimeout,
		intn:          rand.IntN,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the API and the pages on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(pages)

	api := r.Group("/api")
	api.GET("/status", h.status)
	api.POST("/reload", h.reload)
	api.GET("/stats", h.stats)
	api.GET("/charts", h.charts)
	api.GET("/anime/:id", h.detail)
	api.GET("/random", h.random)
	api.GET("/revisions", h.revisions)

	view := api.Group("/view", sessionMiddleware())
	view.GET("", h.view)
	view.POST("/filter", h.applyFilter)
	view.POST("/clear", h.clearFilter)

	h.registerPages(r)
}

func (h *Handler) status(c *gin.Context) {
	ls := h.Svc.State()
	body := gin.H{
		"status":   ls.Status,
		"since":    ls.Since,
		"revision": ls.Revision(),
		"count":    len(ls.Records()),
	}
	if ls.Reason != "" {
		body["reason"] = ls.Reason
	}
	if ls.Dataset != nil {
		body["loaded_at"] = ls.Dataset.LoadedAt
		body["dropped"] = ls.Dataset.Dropped
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) reload(c *gin.Context) {
	h.Svc.Refresh(h.reloadTimeout)
	c.JSON(http.StatusAccepted, gin.H{"status": dashboard.StatusLoading})
}

func (h *Handler) stats(c *gin.Context) {
	ls := h.Svc.State()
	c.JSON(http.StatusOK, dashboard.Derive(ls, noFilter).Stats)
}

func (h *Handler) charts(c *gin.Context) {
	ls := h.Svc.State()
	c.JSON(http.StatusOK, ChartsFor(dashboard.Derive(ls, noFilter).Stats))
}

func (h *Handler) view(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sessions.Current(sessionID(c)))
}

type filterRequest struct {
	Kind  string `json:"kind" form:"kind"`
	Value string `json:"value" form:"value"`
}

func (h *Handler) applyFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter body"})
		return
	}
	crit, err := parseFilter(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Sessions.Apply(sessionID(c), crit))
}

func (h *Handler) clearFilter(c *gin.Context) {
	c.JSON(http.StatusOK, h.Sessions.Clear(sessionID(c)))
}

func (h *Handler) detail(c *gin.Context) {
	d, err := h.Svc.Detail(c.Request.Context(), parseID(c.Param("id")))
	if err != nil {
		code, msg := errorStatus(err)
		h.logLookupError(c, err, code)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) random(c *gin.Context) {
	d, err := h.Svc.Random(c.Request.Context(), h.intn)
	if err != nil {
		code, msg := errorStatus(err)
		h.logLookupError(c, err, code)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) revisions(c *gin.Context) {
	if h.Archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
		return
	}

	limit := archive.ListLimit(parseInt(c.Query("limit"), archive.DefaultListLimit))

	revs, err := h.Archive.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list revisions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": revs, "limit": limit})
}

func (h *Handler) logLookupError(c *gin.Context, err error, code int) {
	if code >= http.StatusInternalServerError {
		h.logger.Warn("anime lookup failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
}

// errorStatus maps lookup errors to a status code and a user-facing message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid anime id"
	case errors.Is(err, jikan.ErrNotFound):
		return http.StatusNotFound, "anime not found"
	case errors.Is(err, dashboard.ErrNoSelection):
		return http.StatusConflict, "the ranking has not been loaded yet"
	default:
		return http.StatusBadGateway, "the ranking service is unavailable, try again later"
	}
}

// parseID returns 0 for anything that is not a plain integer, which the
// service rejects as an invalid identifier.
func parseID(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
