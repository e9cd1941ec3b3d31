// File: internal/publication/handler.go
package publication

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/middleware"
	"marketplace_backend/internal/subscription"
)

// Handler exposes the publication lifecycle over HTTP.
type Handler struct {
	service  Service
	subs     subscription.Service
	listings listing.Repository
	logger   *zap.Logger
}

// NewHandler creates a new publication handler.
func NewHandler(service Service, subs subscription.Service, listings listing.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		subs:     subs,
		listings: listings,
		logger:   logger.Named("publication_handler"),
	}
}

// RegisterRoutes wires the publication endpoints into the API group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	admin := rg.Group("/listings/admin")
	admin.Use(auth, middleware.RoleAuth(host.RoleAdmin))
	{
		admin.POST("/:id/approve", h.approve)
	}

	listings := rg.Group("/listings")
	listings.Use(auth)
	{
		listings.POST("/:id/unpublish", h.unpublish)
		listings.GET("/:id/slot", h.getSlot)
		listings.PUT("/:id/slot/do-not-renew", h.setDoNotRenew)
	}
}

type approveRequest struct {
	ListingVerified bool `json:"listing_verified"`
}

type listingStatusResponse struct {
	ListingID              string  `json:"listing_id"`
	Status                 string  `json:"status"`
	ActiveSlotID           *string `json:"active_slot_id,omitempty"`
	SlotExpiresAt          *string `json:"slot_expires_at,omitempty"`
	FirstReviewCompletedAt *string `json:"first_review_completed_at,omitempty"`
}

func toStatusResponse(l *listing.Listing) listingStatusResponse {
	resp := listingStatusResponse{
		ListingID: l.ID.String(),
		Status:    string(l.Status),
	}
	if l.ActiveSlotID != nil {
		id := l.ActiveSlotID.String()
		resp.ActiveSlotID = &id
	}
	if l.SlotExpiresAt != nil {
		t := l.SlotExpiresAt.Format("2006-01-02T15:04:05Z07:00")
		resp.SlotExpiresAt = &t
	}
	if l.FirstReviewCompletedAt != nil {
		t := l.FirstReviewCompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.FirstReviewCompletedAt = &t
	}
	return resp
}

func (h *Handler) approve(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid listing id."))
		return
	}

	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(verrs)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	l, err := h.service.Approve(c.Request.Context(), listingID, req.ListingVerified)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	common.RespondOK(c, "Listing approved.", toStatusResponse(l))
}

func (h *Handler) unpublish(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid listing id."))
		return
	}

	if err := h.authorizeListingAccess(c, listingID); err != nil {
		common.RespondWithError(c, err)
		return
	}

	l, err := h.service.Unpublish(c.Request.Context(), listingID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	common.RespondOK(c, "Listing unpublished.", toStatusResponse(l))
}

type slotResponse struct {
	SlotID     string `json:"slot_id"`
	ListingID  string `json:"listing_id"`
	ExpiresAt  string `json:"expires_at"`
	IsPastDue  bool   `json:"is_past_due"`
	DoNotRenew bool   `json:"do_not_renew"`
}

func (h *Handler) getSlot(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid listing id."))
		return
	}

	if err := h.authorizeListingAccess(c, listingID); err != nil {
		common.RespondWithError(c, err)
		return
	}

	s, err := h.subs.GetSlotByListingID(c.Request.Context(), listingID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if s == nil {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("Listing has no advertising slot."))
		return
	}

	common.RespondOK(c, "", slotResponse{
		SlotID:     s.ID.String(),
		ListingID:  s.ListingID.String(),
		ExpiresAt:  s.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		IsPastDue:  s.IsPastDue,
		DoNotRenew: s.DoNotRenew,
	})
}

type doNotRenewRequest struct {
	SlotID     string `json:"slot_id" binding:"required,uuid"`
	DoNotRenew *bool  `json:"do_not_renew" binding:"required"`
}

func (h *Handler) setDoNotRenew(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid listing id."))
		return
	}

	var req doNotRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(verrs)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	if err := h.authorizeListingAccess(c, listingID); err != nil {
		common.RespondWithError(c, err)
		return
	}

	slotID, _ := uuid.Parse(req.SlotID)
	if err := h.subs.SetSlotDoNotRenew(c.Request.Context(), listingID, slotID, *req.DoNotRenew); err != nil {
		common.RespondWithError(c, err)
		return
	}

	common.RespondNoContent(c)
}

// authorizeListingAccess lets admins through and requires hosts to own the
// listing.
func (h *Handler) authorizeListingAccess(c *gin.Context, listingID uuid.UUID) error {
	if middleware.GetHostRoleFromContext(c) == host.RoleAdmin {
		return nil
	}

	l, err := h.listings.FindByID(c.Request.Context(), listingID)
	if err != nil {
		return err
	}
	if l.HostID != middleware.GetHostIDFromContext(c) {
		return common.ErrForbidden.WithDetails("You do not own this listing.")
	}
	return nil
}
