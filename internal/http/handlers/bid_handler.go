// README: Bid handlers: submit, withdraw, accept and bid/charge queries.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"freightbid/internal/modules/bid"
	"freightbid/internal/modules/fee"
	"freightbid/internal/types"
)

type BidHandler struct {
	bids *bid.Service
}

func NewBidHandler(svc *bid.Service) *BidHandler {
	return &BidHandler{bids: svc}
}

// submitBidReq takes the amount as a decimal dollar string ("500.00") to avoid
// float rounding on the wire.
type submitBidReq struct {
	Amount string `json:"amount" binding:"required"`
}

type chargeResp struct {
	BidID            uuid.UUID   `json:"bid_id"`
	BookingID        uuid.UUID   `json:"booking_id"`
	BidAmount        types.Money `json:"bid_amount"`
	Charge           types.Money `json:"charge"`
	CarrierNet       types.Money `json:"carrier_net"`
	ChargePercentage float64     `json:"charge_percentage"`
	Display          gin.H       `json:"display"`
	ComputedAt       time.Time   `json:"computed_at"`
}

func newChargeResp(c *fee.PlatformCharge) chargeResp {
	return chargeResp{
		BidID:            c.BidID,
		BookingID:        c.BookingUUID,
		BidAmount:        c.BidAmount,
		Charge:           c.Charge,
		CarrierNet:       c.CarrierNet,
		ChargePercentage: c.ChargePercentage,
		Display: gin.H{
			"bid_amount":  fee.Format(c.BidAmount),
			"charge":      fee.Format(c.Charge),
			"carrier_net": fee.Format(c.CarrierNet),
		},
		ComputedAt: c.ComputedAt,
	}
}

func (h *BidHandler) Submit(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req submitBidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	amount, err := fee.ParseAmount(req.Amount)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	b, err := h.bids.Submit(c.Request.Context(), p, bid.SubmitCommand{BookingUUID: bookingID, Amount: amount})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BidHandler) ListForBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.bids.ListForBooking(c.Request.Context(), p, bookingID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bids": list})
}

// ListMine only supports the caller-scoped listing.
func (h *BidHandler) ListMine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if c.Query("mine") != "true" {
		writeError(c, http.StatusBadRequest, "only mine=true is supported")
		return
	}
	list, err := h.bids.ListMine(c.Request.Context(), p)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bids": list})
}

func (h *BidHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := h.bids.Get(c.Request.Context(), p, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BidHandler) Withdraw(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := h.bids.Withdraw(c.Request.Context(), p, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BidHandler) Accept(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	charge, err := h.bids.Accept(c.Request.Context(), p, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newChargeResp(charge))
}

func (h *BidHandler) Charge(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	charge, err := h.bids.Charge(c.Request.Context(), p, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newChargeResp(charge))
}
