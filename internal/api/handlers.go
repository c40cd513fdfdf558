package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/mediasorter/internal/parser"
)

type handlers struct {
	deps Deps
}

func (h *handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the in-flight files, per-folder failure counters and ledger size.
func (h *handlers) Status(c *gin.Context) {
	resp := gin.H{}
	if o := h.deps.Organizer; o != nil {
		resp["in_flight"] = o.InFlight().Snapshot()
		resp["failure_counts"] = o.Quarantine().Snapshot()
		resp["ledger_size"] = o.Ledger().Len()
	}
	if h.deps.WatcherStates != nil {
		resp["watchers"] = h.deps.WatcherStates()
	}
	c.JSON(http.StatusOK, resp)
}

type parseRequest struct {
	Filename string `json:"filename" binding:"required"`
	Folder   string `json:"folder"`
	Label    string `json:"label"`
}

// Parse is a dry run of the filename parser; nothing touches the filesystem.
func (h *handlers) Parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var hint *parser.LabelHint
	if req.Label != "" {
		lh, ok := parser.ParseLabel(req.Label)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label does not match Title (Year)-S<n>-[episodes]-quality"})
			return
		}
		hint = lh
	}
	guess := h.deps.Parser.Parse(req.Filename, req.Folder, hint)
	c.JSON(http.StatusOK, gin.H{"guess": guess, "usable": guess.Usable()})
}

func (h *handlers) Scan(c *gin.Context) {
	if h.deps.Scan == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanning is not enabled"})
		return
	}
	if !h.deps.Scan() {
		c.JSON(http.StatusConflict, gin.H{"status": "already running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
