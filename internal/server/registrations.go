package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	regdomain "github.com/smallbiznis/summit/internal/registration/domain"
)

type createRegistrationRequest struct {
	RegistrationType  string                  `json:"registration_type"`
	EventIDs          []string                `json:"event_ids"`
	PersonalInfo      map[string]any          `json:"personal_info"`
	OrganizationInfo  map[string]any          `json:"organization_info"`
	GroupParticipants []regdomain.Participant `json:"group_participants"`
}

func (s *Server) CreateRegistration(c *gin.Context) {
	var req createRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ids := make([]snowflake.ID, 0, len(req.EventIDs))
	for _, raw := range req.EventIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, newValidationError("event_ids", "invalid_event_id", "invalid event id"))
			return
		}
		ids = append(ids, id)
	}

	reg, err := s.registrationSvc.Create(c.Request.Context(), regdomain.CreateRequest{
		UserID:            currentUserID(c),
		RegistrationType:  req.RegistrationType,
		EventIDs:          ids,
		PersonalInfo:      req.PersonalInfo,
		OrganizationInfo:  req.OrganizationInfo,
		GroupParticipants: req.GroupParticipants,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (s *Server) GetRegistration(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reg, err := s.registrationSvc.Get(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (s *Server) ListRegistrations(c *gin.Context) {
	regs, err := s.registrationSvc.ListByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs})
}

func (s *Server) DeleteRegistration(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.registrationSvc.Delete(c.Request.Context(), id, currentUserID(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type validatePaymentRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

func (s *Server) ValidatePayment(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req validatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.paymentSvc.ValidateCharge(c.Request.Context(), id, currentUserID(c), req.AmountMinor); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) ListPayments(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.paymentSvc.History(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": entries})
}

func parseIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}
