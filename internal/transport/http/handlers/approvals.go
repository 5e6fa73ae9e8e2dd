package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

// ApprovalHandler serves the user approval workflow endpoints.
type ApprovalHandler struct {
	approvals *usecase.ApprovalService
}

// NewApprovalHandler builds an ApprovalHandler backed by the approval service.
func NewApprovalHandler(approvals *usecase.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// CreateApproval opens a pending approval for a user and requested role.
func (h *ApprovalHandler) CreateApproval(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ApprovalCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid approval payload"))
		return
	}

	approval, err := h.approvals.CreateUserApproval(c.Request.Context(),
		strings.TrimSpace(req.UserID), strings.TrimSpace(req.RequestedRole), actorID, req.Notes)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserIDRequired, Status: http.StatusBadRequest, Message: "user id is required"},
			{Err: usecase.ErrRoleNameRequired, Status: http.StatusBadRequest, Message: "requested role is required"},
			{Err: usecase.ErrApprovalUserNotFound, Status: http.StatusBadRequest, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to create approval")
		return
	}

	c.JSON(http.StatusCreated, newApprovalPayload(*approval))
}

// ApproveUser resolves a pending approval as approved and activates the
// requested role. Returns resolved=false when the approval was already
// processed by another reviewer.
func (h *ApprovalHandler) ApproveUser(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ApprovalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid approval payload"))
		return
	}

	resolved, err := h.approvals.ApproveUser(c.Request.Context(), c.Param("approvalId"), actorID, req.Notes)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrActorRequired, Status: http.StatusBadRequest, Message: "approver is required"},
		}, http.StatusInternalServerError, "failed to approve user")
		return
	}

	if !resolved {
		c.JSON(http.StatusOK, ApprovalResolutionResponse{
			Resolved: false,
			Message:  "approval not found or already processed",
		})
		return
	}

	c.JSON(http.StatusOK, ApprovalResolutionResponse{Resolved: true, Message: "user approved"})
}

// RejectUser resolves a pending approval as rejected. A reason is mandatory.
func (h *ApprovalHandler) RejectUser(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	var req ApprovalRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "rejection reason is required"))
		return
	}

	resolved, err := h.approvals.RejectUser(c.Request.Context(), c.Param("approvalId"), actorID, req.Reason)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrReasonRequired, Status: http.StatusBadRequest, Message: "rejection reason is required"},
			{Err: usecase.ErrActorRequired, Status: http.StatusBadRequest, Message: "reviewer is required"},
		}, http.StatusInternalServerError, "failed to reject user")
		return
	}

	if !resolved {
		c.JSON(http.StatusOK, ApprovalResolutionResponse{
			Resolved: false,
			Message:  "approval not found or already processed",
		})
		return
	}

	c.JSON(http.StatusOK, ApprovalResolutionResponse{Resolved: true, Message: "user rejected"})
}

// GetApproval returns a single approval by id.
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	approval, err := h.approvals.GetApproval(c.Request.Context(), c.Param("approvalId"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrApprovalNotFound, Status: http.StatusNotFound, Message: "approval not found"},
		}, http.StatusInternalServerError, "failed to get approval")
		return
	}

	c.JSON(http.StatusOK, newApprovalPayload(*approval))
}

// ListPendingApprovals returns every pending approval enriched with target and
// requester display fields, newest first.
func (h *ApprovalHandler) ListPendingApprovals(c *gin.Context) {
	pending, err := h.approvals.ListPendingApprovals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list pending approvals"))
		return
	}

	payload := make([]PendingApprovalPayload, 0, len(pending))
	for _, entry := range pending {
		payload = append(payload, newPendingApprovalPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"approvals": payload})
}

func newPendingApprovalPayload(entry domain.PendingApproval) PendingApprovalPayload {
	payload := PendingApprovalPayload{
		ApprovalPayload: newApprovalPayload(entry.UserApproval),
		TargetName:      entry.TargetName,
		TargetEmail:     entry.TargetEmail,
	}
	if entry.RequesterName != "" {
		requester := entry.RequesterName
		payload.RequesterName = &requester
	}
	return payload
}
