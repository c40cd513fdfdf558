package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pokerjest/mediasorter/internal/metrics"
	"github.com/pokerjest/mediasorter/internal/parser"
	"github.com/pokerjest/mediasorter/internal/service"
	"github.com/rs/zerolog"
)

// Deps are what the status API reads from. Scan and WatcherStates are optional.
type Deps struct {
	Organizer *service.Organizer
	Parser    *parser.Parser
	// Scan starts a rescan in the background; false means one is already running.
	Scan          func() bool
	WatcherStates func() map[string]string
}

func NewRouter(deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	h := &handlers{deps: deps}
	if h.deps.Parser == nil {
		h.deps.Parser = parser.New(parser.RlsGuesser{}, nil)
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", h.Health)
		apiGroup.GET("/status", h.Status)
		apiGroup.POST("/parse", h.Parse)
		apiGroup.POST("/scan", h.Scan)
	}
	return r
}
