package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/summit/internal/catalog/domain"
)

func (s *Server) ListEvents(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"

	events, err := s.catalogSvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) ListFeaturedEvents(c *gin.Context) {
	events, err := s.catalogSvc.ListFeatured(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) GetEvent(c *gin.Context) {
	slugValue := strings.TrimSpace(c.Param("slug"))
	if slugValue == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.catalogSvc.GetBySlug(c.Request.Context(), slugValue)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *Server) CreateEvent(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := currentUserID(c)
	eventID := event.ID.String()
	_ = s.auditSvc.AuditLog(c.Request.Context(), &actorID, "event.created", "event", &eventID, map[string]any{
		"slug": event.Slug,
	})

	c.JSON(http.StatusCreated, event)
}
