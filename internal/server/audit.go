package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs returns the audit trail for one target, oldest first.
// Admin only.
func (s *Server) ListAuditLogs(c *gin.Context) {
	targetType := strings.TrimSpace(c.Query("target_type"))
	targetID := strings.TrimSpace(c.Query("target_id"))
	if targetType == "" || targetID == "" {
		AbortWithError(c, newValidationError("target", "missing_target", "target_type and target_id are required"))
		return
	}

	entries, err := s.auditSvc.ListByTarget(c.Request.Context(), targetType, targetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": entries})
}
