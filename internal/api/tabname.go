package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chr1syy/maestro/internal/tabnaming"
)

func (s *Server) generateTabName(c *gin.Context) {
	if s.deps.TabNamer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tab naming is not available"})
		return
	}
	var req tabnaming.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.UserMessage == "" || req.AgentType == "" {
		badRequest(c, "user_message and agent_type are required")
		return
	}
	name, ok := s.deps.TabNamer.GenerateTabName(c.Request.Context(), req)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"tab_name": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tab_name": name})
}
