package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/services"
	"github.com/lunevo/bidwire/internal/utils"
)

// BidHandler handles bid HTTP requests.
type BidHandler struct {
	Service *services.BidService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler creates a new instance of BidHandler.
func NewBidHandler(service *services.BidService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateBid handles requests to create a bid.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.CreateBid(ctx, bidReq)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to create bid")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// AcceptBid handles requests to accept a bid.
func (h *BidHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.AcceptBid(ctx, r.PathValue("projectId"), r.PathValue("bidId"), req)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to accept bid")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// RejectBid handles requests to reject a bid.
func (h *BidHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.RejectBid(ctx, r.PathValue("projectId"), r.PathValue("bidId"), req)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to reject bid")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// CounterBid handles requests to counter a bid.
func (h *BidHandler) CounterBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.CounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.CounterBid(ctx, r.PathValue("projectId"), r.PathValue("bidId"), req)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to counter bid")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// RespondToCounter handles requests to answer a counter-offer.
func (h *BidHandler) RespondToCounter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.RespondToCounter(ctx, r.PathValue("bidId"), req)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to respond to counter-offer")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// WithdrawBid handles requests to withdraw a bid.
func (h *BidHandler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	result, err := h.Service.WithdrawBid(ctx, r.PathValue("bidId"), req)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to withdraw bid")
		return
	}
	utils.SendJSON(w, h.Logger, result)
}

// GetProjectBids handles requests to list the bids on a project.
func (h *BidHandler) GetProjectBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.GetProjectBids(ctx, r.PathValue("projectId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve bids")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	utils.SendJSON(w, h.Logger, bids)
}
