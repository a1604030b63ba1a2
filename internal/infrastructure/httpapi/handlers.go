package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"PageWatcher/internal/domain"
)

type handler struct {
	tracker Tracker
	checker Checker
}

type registerRequest struct {
	URL  string `json:"url" binding:"required"`
	Rule string `json:"rule"`
}

type registerResponse struct {
	URL     string `json:"url"`
	Created bool   `json:"created"`
}

type listingResponse struct {
	Position      int        `json:"position"`
	URL           string     `json:"url"`
	Rule          string     `json:"rule,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

type outcomeResponse struct {
	URL                 string  `json:"url"`
	Changed             bool    `json:"changed"`
	Event               string  `json:"event,omitempty"`
	PreviousFingerprint *string `json:"previous_fingerprint,omitempty"`
	NewFingerprint      *string `json:"new_fingerprint,omitempty"`
	Error               string  `json:"error,omitempty"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_url", "detail": err.Error()})
		return
	}

	created, err := h.tracker.Register(c.Request.Context(), c.Param("owner"), req.URL, req.Rule)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, registerResponse{URL: strings.TrimSpace(req.URL), Created: created})
}

func (h *handler) list(c *gin.Context) {
	listing, err := h.tracker.List(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]listingResponse, 0, len(listing))
	for _, l := range listing {
		out = append(out, listingResponse{
			Position:      l.Position,
			URL:           l.URL,
			Rule:          l.Rule,
			LastCheckedAt: l.LastCheckedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"resources": out})
}

// remove accepts the selector as a path suffix (/resources/2) or as ?url=.
func (h *handler) remove(c *gin.Context) {
	selector := strings.TrimPrefix(c.Param("selector"), "/")
	if selector == "" {
		selector = c.Query("url")
	}
	if selector == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing selector"})
		return
	}

	removed, err := h.tracker.Remove(c.Request.Context(), c.Param("owner"), selector)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed.URL})
}

func (h *handler) check(c *gin.Context) {
	outcomes, err := h.checker.CheckOwner(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]outcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		resp := outcomeResponse{
			URL:                 o.Resource.URL,
			Changed:             o.Changed,
			PreviousFingerprint: o.PreviousFingerprint,
			NewFingerprint:      o.NewFingerprint,
		}
		if o.Event != nil {
			resp.Event = string(o.Event.Kind)
		}
		if o.Err != nil {
			resp.Error = o.Err.Error()
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": out})
}

func (h *handler) pause(c *gin.Context) {
	if err := h.tracker.Pause(c.Request.Context(), c.Param("owner")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitoring": false})
}

func (h *handler) resume(c *gin.Context) {
	if err := h.tracker.Resume(c.Request.Context(), c.Param("owner")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"monitoring": true})
}

func (h *handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrInvalidResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_url", "detail": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
