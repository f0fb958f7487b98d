package api

import (
	"context"
	"net/http"
	"time"

	"license-server/internal/license"

	"github.com/gin-gonic/gin"
)

// licenseRequest is the body the extension posts to both license
// endpoints. device_info is only used on activation.
type licenseRequest struct {
	LicenseKey string `json:"license_key"`
	Email      string `json:"email"`
	DeviceInfo string `json:"device_info"`
}

// handleActivate handles POST /activate-license
func (s *Server) handleActivate(c *gin.Context) {
	var req licenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, err := s.licenses.Activate(c.Request.Context(), req.LicenseKey, req.Email, req.DeviceInfo)
	if err != nil {
		s.writeLicenseError(c, err, gin.H{"activated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"activated":     result.Activated,
		"plan":          result.Plan,
		"session_token": result.SessionToken,
		"expires_at":    result.ExpiresAt,
	})
}

// handleValidate handles POST /validate-license
func (s *Server) handleValidate(c *gin.Context) {
	var req licenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, err := s.licenses.Validate(c.Request.Context(), req.LicenseKey, req.Email)
	if err != nil {
		s.writeLicenseError(c, err, gin.H{"valid": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"valid":      result.Valid,
		"plan":       result.Plan,
		"email":      result.Email,
		"expires_at": result.ExpiresAt,
	})
}

// writeLicenseError maps service errors onto the wire convention:
// missing fields are a 400, business-rule rejections ride a 200 with
// success=false, anything else is a 500 with the error text verbatim.
// extra carries the endpoint's negative outcome flag (valid/activated).
func (s *Server) writeLicenseError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{"success": false, "error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}

	switch {
	case license.IsInvalidRequest(err):
		c.JSON(http.StatusBadRequest, body)
	case license.IsBusinessError(err):
		c.JSON(http.StatusOK, body)
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, body)
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	components := gin.H{"database": "ok"}

	if err := s.db.HealthCheck(ctx); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		components["database"] = err.Error()
	}

	if s.vault != nil {
		components["vault"] = "ok"
		if err := s.vault.Health(ctx); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			components["vault"] = err.Error()
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":     status,
		"components": components,
		"ws_clients": s.wsHub.ClientCount(),
		"timestamp":  time.Now().UTC(),
	})
}
