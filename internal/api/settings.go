package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/args"
	"github.com/chr1syy/maestro/internal/agent/ssh"
)

func (s *Server) getAgentConfig(c *gin.Context) {
	def, err := agents.Lookup(c.Param("id"))
	if err != nil {
		s.fail(c, err, "unknown agent")
		return
	}
	cfg, err := s.deps.Settings.AgentConfig(c.Request.Context(), def.ID)
	if err != nil {
		s.fail(c, err, "load agent config failed")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) putAgentConfig(c *gin.Context) {
	def, err := agents.Lookup(c.Param("id"))
	if err != nil {
		s.fail(c, err, "unknown agent")
		return
	}
	var cfg args.AgentConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Settings.PutAgentConfig(c.Request.Context(), def.ID, cfg); err != nil {
		s.fail(c, err, "save agent config failed")
		return
	}
	if s.deps.Detector != nil {
		s.deps.Detector.Invalidate(def.ID)
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) deleteAgentConfig(c *gin.Context) {
	if err := s.deps.Settings.DeleteAgentConfig(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err, "delete agent config failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listRemotes(c *gin.Context) {
	remotes, err := s.deps.Settings.ListSSHRemotes(c.Request.Context())
	if err != nil {
		s.fail(c, err, "list ssh remotes failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ssh_remotes": remotes})
}

func (s *Server) getRemote(c *gin.Context) {
	remote, err := s.deps.Settings.GetSSHRemote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "get ssh remote failed")
		return
	}
	c.JSON(http.StatusOK, remote)
}

func (s *Server) putRemote(c *gin.Context) {
	var remote ssh.RemoteConfig
	if err := c.ShouldBindJSON(&remote); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	remote.ID = c.Param("id")
	if err := s.deps.Settings.PutSSHRemote(c.Request.Context(), &remote); err != nil {
		s.fail(c, err, "save ssh remote failed")
		return
	}
	c.JSON(http.StatusOK, remote)
}

func (s *Server) deleteRemote(c *gin.Context) {
	if err := s.deps.Settings.DeleteSSHRemote(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err, "delete ssh remote failed")
		return
	}
	c.Status(http.StatusNoContent)
}
