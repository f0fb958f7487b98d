package api

import (
	"encoding/json"
	"io"
	"net/http"

	"license-server/internal/admin"

	"github.com/gin-gonic/gin"
)

// handleAdmin handles POST /admin-api. Every admin operation goes
// through this single endpoint, selected by the action field. The
// token check runs before anything touches the store; only admin_login
// is exempt.
func (s *Server) handleAdmin(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not read request body"})
		return
	}

	var env admin.Request
	if err := json.Unmarshal(body, &env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	env.Payload = body
	if env.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "action is required"})
		return
	}

	kind, parseErr := admin.ParseAction(env.Action)

	if kind != admin.ActionLogin {
		if !s.adminSvc.Authorize(env.Token) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
	}

	if parseErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": parseErr.Error()})
		return
	}

	result, err := s.adminSvc.Dispatch(c.Request.Context(), kind, env.Payload)
	if err != nil {
		s.writeAdminError(c, err)
		return
	}

	s.writeAdminResult(c, result)
}

// writeAdminResult folds success=true into map results so every action
// responds with the same envelope.
func (s *Server) writeAdminResult(c *gin.Context, result interface{}) {
	if m, ok := result.(map[string]interface{}); ok {
		if _, has := m["success"]; !has {
			m["success"] = true
		}
		c.JSON(http.StatusOK, m)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (s *Server) writeAdminError(c *gin.Context, err error) {
	if admin.IsClientError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.logger.Error().Err(err).Msg("admin action failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}
