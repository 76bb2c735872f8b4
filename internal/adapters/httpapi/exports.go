package httpapi

import (
	"net/http"
	"time"

	"deckcore/internal/blob"

	"github.com/gin-gonic/gin"
)

// ImportRequest names the archived snapshot to import.
type ImportRequest struct {
	Key string `json:"key" binding:"required"`
}

// ShareRequest asks for a time-limited link to an archived snapshot.
type ShareRequest struct {
	Key        string `json:"key" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds" binding:"omitempty,gte=1,lte=604800"`
}

func (h *Handler) listExports(c *gin.Context) {
	infos, err := h.svc.Exports(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": infos})
}

func (h *Handler) export(c *gin.Context) {
	info, err := h.svc.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *Handler) importExport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Import(c.Request.Context(), req.Key); err != nil {
		h.fail(c, err)
		return
	}
	h.getDeck(c)
}

func (h *Handler) shareExport(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ttl := blob.DefaultURLExpiry
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	url, err := h.svc.ShareExport(c.Request.Context(), req.Key, ttl)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "url": url, "expires_in": int(ttl.Seconds())})
}
