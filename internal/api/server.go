// Package api exposes the process manager over HTTP and streams lifecycle
// events over WebSocket.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/common/httpmw"
	"github.com/chr1syy/maestro/internal/common/logger"
	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
	"github.com/chr1syy/maestro/internal/settings/store"
	"github.com/chr1syy/maestro/internal/tabnaming"
)

const serverName = "maestrod"

// ProcessManager is the process manager surface the API drives.
type ProcessManager interface {
	Spawn(ctx context.Context, cfg process.Config) (*process.Info, error)
	Kill(sessionID string) error
	KillAll(ctx context.Context) error
	List() []process.Info
	Get(sessionID string) (*process.Info, bool)
	Write(sessionID string, data []byte) error
	Interrupt(sessionID string) error
	Resize(sessionID string, cols, rows int) error
	Screen(sessionID string) ([]string, error)
}

// TabNamer generates tab names.
type TabNamer interface {
	GenerateTabName(ctx context.Context, req tabnaming.Request) (string, bool)
}

// Deps are the collaborators of the HTTP API. Detector and TabNamer may be nil.
type Deps struct {
	Manager       ProcessManager
	Bus           bus.EventBus
	SubjectPrefix string
	Settings      store.Repository
	TabNamer      TabNamer
	Detector      *agents.Detector
	Logger        *logger.Logger
}

// Server holds the route handlers.
type Server struct {
	deps   Deps
	logger *logger.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	s := &Server{
		deps:   deps,
		logger: deps.Logger.WithFields(zap.String("component", "api")),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(deps.Logger, serverName))
	router.Use(httpmw.OtelTracing(serverName))

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")

	procs := v1.Group("/processes")
	procs.POST("", s.spawnProcess)
	procs.POST("/agent", s.spawnAgent)
	procs.GET("", s.listProcesses)
	procs.POST("/kill-all", s.killAll)
	procs.GET("/:id", s.getProcess)
	procs.DELETE("/:id", s.killProcess)
	procs.GET("/:id/screen", s.processScreen)
	procs.POST("/:id/write", s.writeProcess)
	procs.POST("/:id/interrupt", s.interruptProcess)
	procs.POST("/:id/resize", s.resizeProcess)

	v1.GET("/agents", s.listAgents)
	v1.GET("/agents/:id/config", s.getAgentConfig)
	v1.PUT("/agents/:id/config", s.putAgentConfig)
	v1.DELETE("/agents/:id/config", s.deleteAgentConfig)
	v1.POST("/args", s.buildArgs)

	v1.GET("/ssh-remotes", s.listRemotes)
	v1.GET("/ssh-remotes/:id", s.getRemote)
	v1.PUT("/ssh-remotes/:id", s.putRemote)
	v1.DELETE("/ssh-remotes/:id", s.deleteRemote)

	v1.POST("/tab-name", s.generateTabName)
	v1.GET("/events", s.streamEvents)

	return router
}

func (s *Server) health(c *gin.Context) {
	busUp := s.deps.Bus != nil && s.deps.Bus.IsConnected()
	status := http.StatusOK
	state := "ok"
	if !busUp {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   serverName,
		"processes": len(s.deps.Manager.List()),
		"event_bus": busUp,
	})
}
