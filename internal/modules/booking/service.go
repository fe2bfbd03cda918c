// README: Booking service implements lifecycle transitions behind the access policy.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"freightbid/internal/access"
	"freightbid/internal/errs"
	"freightbid/internal/events"
	"freightbid/internal/identity"
	"freightbid/internal/metrics"
	"freightbid/internal/types"
)

const listLimit = 100

type Repository interface {
	Create(ctx context.Context, b *Booking, actorRole string) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByOwner(ctx context.Context, owner types.ID, limit int) ([]Booking, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Booking, error)
	UpdateStatus(ctx context.Context, tr Transition) (bool, error)
	UpdateDetails(ctx context.Context, d Details) (bool, error)
}

// RouteEstimator is optional; failures never block a booking.
type RouteEstimator interface {
	DistanceKm(ctx context.Context, origin, destination string) (float64, error)
}

type Service struct {
	repo   Repository
	policy *access.Policy
	routes RouteEstimator
	events events.Publisher
	log    logrus.FieldLogger
}

func NewService(repo Repository, policy *access.Policy, routes RouteEstimator, pub events.Publisher, log logrus.FieldLogger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{repo: repo, policy: policy, routes: routes, events: pub, log: log.WithField("module", "booking")}
}

type CreateCommand struct {
	// Owner defaults to the caller; only admins may create on behalf of someone else.
	Owner       types.ID
	Origin      string
	Destination string
	Notes       string
	Publish     bool
}

type UpdateCommand struct {
	Origin      *string
	Destination *string
	Notes       *string
}

type CancelCommand struct {
	Reason string
}

func (s *Service) Create(ctx context.Context, p identity.Principal, cmd CreateCommand) (*Booking, error) {
	if err := s.policy.Authorize(p, access.ActionCreateBooking, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	owner := cmd.Owner
	if owner == "" {
		owner = p.IdentityID
	}
	if owner != p.IdentityID && !p.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot create bookings for another customer", errs.ErrForbidden)
	}
	origin, destination := strings.TrimSpace(cmd.Origin), strings.TrimSpace(cmd.Destination)
	if origin == "" || destination == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", errs.ErrBadRequest)
	}

	status := StatusDraft
	if cmd.Publish {
		status = StatusOpen
	}
	b := &Booking{
		UUID:                uuid.New(),
		OwnerID:             owner,
		Origin:              origin,
		Destination:         destination,
		Notes:               strings.TrimSpace(cmd.Notes),
		EstimatedDistanceKm: s.estimate(ctx, origin, destination),
		Status:              status,
	}
	if err := s.repo.Create(ctx, b, string(p.Role)); err != nil {
		return nil, err
	}

	metrics.BookingTransitionsTotal.WithLabelValues(string(status)).Inc()
	s.log.WithFields(logrus.Fields{"booking_id": b.UUID, "owner_id": owner, "status": status}).Info("booking created")
	s.emit(ctx, events.BookingCreated, b, p)
	if cmd.Publish {
		s.emit(ctx, events.BookingPublished, b, p)
	}
	return b, nil
}

func (s *Service) Publish(ctx context.Context, p identity.Principal, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, p, id, access.ActionMutateBooking, StatusOpen, nil, events.BookingPublished)
}

func (s *Service) Cancel(ctx context.Context, p identity.Principal, id uuid.UUID, cmd CancelCommand) (*Booking, error) {
	var reason *string
	if r := strings.TrimSpace(cmd.Reason); r != "" {
		reason = &r
	}
	return s.transition(ctx, p, id, access.ActionMutateBooking, StatusCancelled, reason, events.BookingCancelled)
}

// MarkInTransit records pickup by the awarded carrier.
func (s *Service) MarkInTransit(ctx context.Context, p identity.Principal, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, p, id, access.ActionMarkInTransit, StatusInTransit, nil, events.BookingInTransit)
}

// Complete confirms delivery.
func (s *Service) Complete(ctx context.Context, p identity.Principal, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, p, id, access.ActionCompleteBooking, StatusCompleted, nil, events.BookingCompleted)
}

func (s *Service) Update(ctx context.Context, p identity.Principal, id uuid.UUID, cmd UpdateCommand) (*Booking, error) {
	b, err := s.load(ctx, p, id, access.ActionMutateBooking)
	if err != nil {
		return nil, err
	}
	if !b.Editable() {
		return nil, fmt.Errorf("%w: booking %s is %s and can no longer be edited", errs.ErrInvalidTransition, b.UUID, b.Status)
	}

	d := Details{
		ID:                  b.ID,
		Version:             b.StatusVersion,
		Origin:              b.Origin,
		Destination:         b.Destination,
		Notes:               b.Notes,
		EstimatedDistanceKm: b.EstimatedDistanceKm,
	}
	if cmd.Origin != nil {
		d.Origin = strings.TrimSpace(*cmd.Origin)
	}
	if cmd.Destination != nil {
		d.Destination = strings.TrimSpace(*cmd.Destination)
	}
	if cmd.Notes != nil {
		d.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if d.Origin == "" || d.Destination == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", errs.ErrBadRequest)
	}
	if d.Origin != b.Origin || d.Destination != b.Destination {
		d.EstimatedDistanceKm = s.estimate(ctx, d.Origin, d.Destination)
	}

	ok, err := s.repo.UpdateDetails(ctx, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %s changed concurrently", errs.ErrConflict, b.UUID)
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.BookingUpdated, updated, p)
	return updated, nil
}

// Get returns the full booking, including owner-private fields.
func (s *Service) Get(ctx context.Context, p identity.Principal, id uuid.UUID) (*Booking, error) {
	return s.load(ctx, p, id, access.ActionReadBooking)
}

// Summary returns the carrier-facing view of a booking.
func (s *Service) Summary(ctx context.Context, p identity.Principal, id uuid.UUID) (*Summary, error) {
	b, err := s.load(ctx, p, id, access.ActionReadBookingSummary)
	if err != nil {
		return nil, err
	}
	sum := b.Summary()
	return &sum, nil
}

func (s *Service) ListMine(ctx context.Context, p identity.Principal) ([]Booking, error) {
	if err := s.policy.Authorize(p, access.ActionListOwnBookings, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, p.IdentityID, listLimit)
}

// ListOpen returns summaries of every booking currently accepting bids.
func (s *Service) ListOpen(ctx context.Context, p identity.Principal) ([]Summary, error) {
	if err := s.policy.Authorize(p, access.ActionListOpenBookings, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByStatus(ctx, StatusOpen, listLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(list))
	for i := range list {
		out = append(out, list[i].Summary())
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, p identity.Principal, id uuid.UUID, action access.Action, to Status, reason *string, evType events.Type) (*Booking, error) {
	b, err := s.load(ctx, p, id, action)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, b.Status, to)
	}
	actor := p.IdentityID
	ok, err := s.repo.UpdateStatus(ctx, Transition{
		ID:        b.ID,
		From:      b.Status,
		To:        to,
		Version:   b.StatusVersion,
		Reason:    reason,
		ActorRole: string(p.Role),
		ActorID:   &actor,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking %s changed concurrently", errs.ErrConflict, b.UUID)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.log.WithFields(logrus.Fields{
		"booking_id": b.UUID,
		"from":       b.Status,
		"to":         to,
		"actor_id":   actor,
	}).Info("booking transitioned")
	s.emit(ctx, evType, updated, p)
	return updated, nil
}

func (s *Service) load(ctx context.Context, p identity.Principal, id uuid.UUID, action access.Action) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(p, action, b.Resource()).Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) estimate(ctx context.Context, origin, destination string) *float64 {
	if s.routes == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	km, err := s.routes.DistanceKm(ctx, origin, destination)
	if err != nil {
		s.log.WithError(err).Warn("route estimate failed")
		return nil
	}
	return &km
}

func (s *Service) emit(ctx context.Context, t events.Type, b *Booking, p identity.Principal) {
	events.Emit(ctx, s.events, s.log, events.Event{
		Type:      t,
		BookingID: b.UUID,
		ActorID:   p.IdentityID,
		Status:    string(b.Status),
	})
}
