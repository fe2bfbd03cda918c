// README: Booking handlers: create, list, view, edit and lifecycle actions.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"freightbid/internal/errs"
	"freightbid/internal/identity"
	"freightbid/internal/modules/booking"
	"freightbid/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type createBookingReq struct {
	OwnerID     string `json:"owner_id"`
	Origin      string `json:"origin" binding:"required,max=500"`
	Destination string `json:"destination" binding:"required,max=500"`
	Notes       string `json:"notes" binding:"max=2000"`
	Publish     bool   `json:"publish"`
}

type updateBookingReq struct {
	Origin      *string `json:"origin" binding:"omitempty,max=500"`
	Destination *string `json:"destination" binding:"omitempty,max=500"`
	Notes       *string `json:"notes" binding:"omitempty,max=2000"`
}

type cancelBookingReq struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), p, booking.CreateCommand{
		Owner:       types.ID(req.OwnerID),
		Origin:      req.Origin,
		Destination: req.Destination,
		Notes:       req.Notes,
		Publish:     req.Publish,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

// List serves "mine=true" from the owner's bookings and otherwise the open board.
func (h *BookingHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if c.Query("mine") == "true" {
		list, err := h.bookings.ListMine(c.Request.Context(), p)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{"bookings": list})
		return
	}
	list, err := h.bookings.ListOpen(c.Request.Context(), p)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": list})
}

// Get returns the full booking when allowed, otherwise the carrier summary.
func (h *BookingHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), p, id)
	if err == nil {
		writeJSON(c, http.StatusOK, b)
		return
	}
	if errors.Is(err, errs.ErrForbidden) && p.Role == identity.RoleCarrier {
		sum, serr := h.bookings.Summary(c.Request.Context(), p, id)
		if serr == nil {
			writeJSON(c, http.StatusOK, sum)
			return
		}
		err = serr
	}
	writeDomainError(c, err)
}

func (h *BookingHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	b, err := h.bookings.Update(c.Request.Context(), p, id, booking.UpdateCommand{
		Origin:      req.Origin,
		Destination: req.Destination,
		Notes:       req.Notes,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Publish(c *gin.Context) {
	h.lifecycle(c, h.bookings.Publish)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
	}
	h.lifecycle(c, func(ctx context.Context, p identity.Principal, id uuid.UUID) (*booking.Booking, error) {
		return h.bookings.Cancel(ctx, p, id, booking.CancelCommand{Reason: req.Reason})
	})
}

func (h *BookingHandler) Pickup(c *gin.Context) {
	h.lifecycle(c, h.bookings.MarkInTransit)
}

func (h *BookingHandler) Complete(c *gin.Context) {
	h.lifecycle(c, h.bookings.Complete)
}

func (h *BookingHandler) lifecycle(c *gin.Context, op func(context.Context, identity.Principal, uuid.UUID) (*booking.Booking, error)) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := op(c.Request.Context(), p, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
