// Package httpapi exposes a core.Service over HTTP with gin.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"deckcore/docs/schema/openapi"
	"deckcore/internal/blob"
	"deckcore/internal/core"
	"deckcore/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler serves the deck API.
type Handler struct {
	svc      *core.Service
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics serves gatherer on GET /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = gatherer }
}

// NewHandler constructs a handler over svc.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds a gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestID())
	h.Register(r)
	return r
}

// Register adds the routes to r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)
	r.GET("/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openapi.Spec())
	})
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/deck", h.getDeck)
	v1.DELETE("/deck", h.clearDeck)
	v1.GET("/deck/stats", h.getStats)
	v1.POST("/deck/sort", h.sortDeck)
	v1.GET("/deck/audit", h.audit)
	v1.POST("/deck/save", h.save)
	v1.DELETE("/deck/save", h.forget)
	v1.POST("/deck/load", h.load)

	v1.POST("/deck/cards", h.addCards)
	v1.GET("/deck/cards/:key", h.getCard)
	v1.PUT("/deck/cards/:key", h.setCard)
	v1.DELETE("/deck/cards/:key", h.removeCard)

	v1.GET("/categories", h.listCategories)
	v1.POST("/categories", h.addCategory)
	v1.GET("/categories/:name", h.getCategory)
	v1.PUT("/categories/:name", h.updateCategory)
	v1.DELETE("/categories/:name", h.removeCategory)
	v1.POST("/categories/:name/rank", h.swapRank)
	v1.POST("/categories/:name/include", h.include)
	v1.POST("/categories/:name/exclude", h.exclude)

	v1.GET("/hand", h.getHand)
	v1.POST("/hand", h.newHand)
	v1.POST("/hand/mulligan", h.mulligan)
	v1.POST("/hand/draw", h.draw)
	v1.PUT("/hand/exclusions/:key", h.handExclude)
	v1.DELETE("/hand/exclusions/:key", h.handInclude)

	v1.GET("/exports", h.listExports)
	v1.POST("/exports", h.export)
	v1.POST("/exports/import", h.importExport)
	v1.POST("/exports/share", h.shareExport)
}

const requestIDHeader = "X-Request-ID"

func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		started := time.Now()
		c.Next()
		h.logger.Debug("http request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deck_id": h.svc.DeckID()})
}

// fail writes err with the status its sentinel maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "request_id", c.GetString("request_id"), "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound, "CARD_NOT_FOUND"
	case errors.Is(err, domain.ErrCategoryNotFound):
		return http.StatusNotFound, "CATEGORY_NOT_FOUND"
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return http.StatusNotFound, "SNAPSHOT_NOT_FOUND"
	case errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "EXPORT_NOT_FOUND"
	case errors.Is(err, domain.ErrCategoryExists):
		return http.StatusConflict, "CATEGORY_EXISTS"
	case errors.Is(err, domain.ErrPoolExhausted):
		return http.StatusConflict, "POOL_EXHAUSTED"
	case errors.Is(err, blob.ErrExists):
		return http.StatusConflict, "EXPORT_EXISTS"
	case errors.Is(err, domain.ErrSameRank):
		return http.StatusConflict, "SAME_RANK"
	case errors.Is(err, domain.ErrRankOutOfRange), errors.Is(err, domain.ErrIndexOutOfRange),
		errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "OUT_OF_RANGE"
	case errors.Is(err, core.ErrArchiveDisabled), errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented, "UNSUPPORTED"
	}
	var catErr *domain.CategoryError
	if errors.As(err, &catErr) {
		return http.StatusBadRequest, "INVALID_CATEGORY"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
