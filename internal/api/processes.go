package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/launch"
	"github.com/chr1syy/maestro/internal/process"
)

func (s *Server) spawnProcess(c *gin.Context) {
	var cfg process.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if cfg.SessionID == "" || cfg.Command == "" {
		badRequest(c, "session_id and command are required")
		return
	}
	if cfg.SSHRemoteID != "" && !process.IsSSHCommand(cfg.Command) {
		s.fail(c, fmt.Errorf("%w: %s", process.ErrRemoteCommand, cfg.Command), "spawn rejected")
		return
	}
	s.spawn(c, cfg)
}

// spawnAgent resolves an agent intent (stored config, overrides and SSH
// remote) into a process config and spawns it.
func (s *Server) spawnAgent(c *gin.Context) {
	var req launch.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.AgentID == "" {
		badRequest(c, "agent_id is required")
		return
	}
	inv, err := launch.Resolve(c.Request.Context(), s.deps.Settings, req)
	if err != nil {
		s.fail(c, err, "resolve agent invocation failed")
		return
	}
	s.spawn(c, inv.Config)
}

func (s *Server) spawn(c *gin.Context, cfg process.Config) {
	info, err := s.deps.Manager.Spawn(c.Request.Context(), cfg)
	if err != nil {
		if errors.Is(err, process.ErrSessionExists) || errors.Is(err, process.ErrRemoteCommand) {
			s.fail(c, err, "spawn rejected")
			return
		}
		// Anything else is a launch failure the caller must see.
		s.logger.Warn("spawn failed", zap.String("session_id", cfg.SessionID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) listProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"processes": s.deps.Manager.List()})
}

func (s *Server) getProcess(c *gin.Context) {
	info, ok := s.deps.Manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "process not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) killProcess(c *gin.Context) {
	if err := s.deps.Manager.Kill(c.Param("id")); err != nil {
		s.fail(c, err, "kill failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) killAll(c *gin.Context) {
	if err := s.deps.Manager.KillAll(c.Request.Context()); err != nil {
		s.fail(c, err, "kill-all failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) processScreen(c *gin.Context) {
	lines, err := s.deps.Manager.Screen(c.Param("id"))
	if err != nil {
		s.fail(c, err, "screen failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

type writeRequest struct {
	Data string `json:"data"`
}

func (s *Server) writeProcess(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Manager.Write(c.Param("id"), []byte(req.Data)); err != nil {
		s.fail(c, err, "write failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) interruptProcess(c *gin.Context) {
	if err := s.deps.Manager.Interrupt(c.Param("id")); err != nil {
		s.fail(c, err, "interrupt failed")
		return
	}
	c.Status(http.StatusNoContent)
}

type resizeRequest struct {
	Cols int `json:"cols" binding:"required,min=1"`
	Rows int `json:"rows" binding:"required,min=1"`
}

func (s *Server) resizeProcess(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Manager.Resize(c.Param("id"), req.Cols, req.Rows); err != nil {
		s.fail(c, err, "resize failed")
		return
	}
	c.Status(http.StatusNoContent)
}
