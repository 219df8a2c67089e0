package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chr1syy/maestro/internal/agent/agents"
	"github.com/chr1syy/maestro/internal/agent/ssh"
	"github.com/chr1syy/maestro/internal/process"
	"github.com/chr1syy/maestro/internal/settings/store"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, process.ErrSessionNotFound),
		errors.Is(err, ssh.ErrRemoteNotFound),
		errors.Is(err, agents.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, process.ErrSessionExists),
		errors.Is(err, process.ErrNotTerminal),
		errors.Is(err, ssh.ErrRemoteDisabled):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidRemote),
		errors.Is(err, process.ErrRemoteCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
