// README: Bid ledger: submit, withdraw and the serialized award of a booking.
package bid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"freightbid/internal/access"
	"freightbid/internal/errs"
	"freightbid/internal/events"
	"freightbid/internal/identity"
	"freightbid/internal/lock"
	"freightbid/internal/metrics"
	"freightbid/internal/modules/booking"
	"freightbid/internal/modules/fee"
	"freightbid/internal/types"
)

const listLimit = 100

type Repository interface {
	Create(ctx context.Context, b *Bid) error
	Get(ctx context.Context, id uuid.UUID) (*Bid, error)
	ListForBooking(ctx context.Context, bookingID int64) ([]Bid, error)
	ListByCarrier(ctx context.Context, carrier types.ID, limit int) ([]Bid, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
	Award(ctx context.Context, a Award) (int64, error)
	GetCharge(ctx context.Context, bidID uuid.UUID) (*fee.PlatformCharge, error)
}

type BookingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

type Service struct {
	repo     Repository
	bookings BookingReader
	policy   *access.Policy
	locker   lock.Locker
	events   events.Publisher
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(repo Repository, bookings BookingReader, policy *access.Policy, locker lock.Locker, pub events.Publisher, log logrus.FieldLogger) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:     repo,
		bookings: bookings,
		policy:   policy,
		locker:   locker,
		events:   pub,
		log:      log.WithField("module", "bid"),
		now:      time.Now,
	}
}

type SubmitCommand struct {
	BookingUUID uuid.UUID
	Amount      types.Money
}

func (s *Service) Submit(ctx context.Context, p identity.Principal, cmd SubmitCommand) (*Bid, error) {
	if err := s.policy.Authorize(p, access.ActionSubmitBid, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	bk, err := s.bookings.Get(ctx, cmd.BookingUUID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(bk); err != nil {
		return nil, err
	}
	if err := fee.ValidateBidAmount(cmd.Amount); err != nil {
		return nil, err
	}

	// Serialize with Accept so an award cannot land between the check and the insert.
	unlock, err := s.locker.Lock(ctx, lockKey(bk.UUID))
	if err != nil {
		return nil, err
	}
	defer unlock()
	if bk, err = s.bookings.Get(ctx, cmd.BookingUUID); err != nil {
		return nil, err
	}
	if err := requireOpen(bk); err != nil {
		return nil, err
	}

	b := &Bid{
		ID:          uuid.New(),
		BookingID:   bk.ID,
		BookingUUID: bk.UUID,
		CarrierID:   p.IdentityID,
		Amount:      cmd.Amount,
		Status:      StatusPending,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}

	metrics.BidsSubmittedTotal.Inc()
	s.log.WithFields(logrus.Fields{"bid_id": b.ID, "booking_id": bk.UUID, "carrier_id": b.CarrierID, "amount": b.Amount.Amount}).Info("bid submitted")
	s.emit(ctx, events.BidSubmitted, b, p, nil)
	return b, nil
}

// Withdraw lets a carrier retract its own pending bid.
func (s *Service) Withdraw(ctx context.Context, p identity.Principal, bidID uuid.UUID) (*Bid, error) {
	if err := requireActive(p); err != nil {
		return nil, err
	}
	b, err := s.repo.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.CarrierID != p.IdentityID && !p.IsAdmin() {
		return nil, fmt.Errorf("%w: bid %s belongs to another carrier", errs.ErrUnauthorized, b.ID)
	}
	if b.Status != StatusPending {
		return nil, fmt.Errorf("%w: bid %s is %s", errs.ErrInvalidBidState, b.ID, b.Status)
	}
	ok, err := s.repo.SetStatus(ctx, b.ID, StatusPending, StatusWithdrawn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: bid %s is no longer pending", errs.ErrInvalidBidState, b.ID)
	}
	b.Status = StatusWithdrawn

	s.log.WithFields(logrus.Fields{"bid_id": b.ID, "carrier_id": b.CarrierID}).Info("bid withdrawn")
	s.emit(ctx, events.BidWithdrawn, b, p, nil)
	return b, nil
}

// Accept awards the booking to bidID. Calls for one booking are serialized by
// the locker; the storage CAS on the booking status decides any remaining race.
func (s *Service) Accept(ctx context.Context, p identity.Principal, bidID uuid.UUID) (*fee.PlatformCharge, error) {
	if err := requireActive(p); err != nil {
		return nil, err
	}
	b, err := s.repo.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	bk, err := s.bookings.Get(ctx, b.BookingUUID)
	if err != nil {
		return nil, err
	}
	if bk.OwnerID != p.IdentityID && !p.IsAdmin() {
		return nil, fmt.Errorf("%w: only the booking owner may accept bids", errs.ErrUnauthorized)
	}
	if err := checkAcceptable(b, bk); err != nil {
		metrics.BidAcceptsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(bk.UUID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock: a concurrent award may have closed the booking.
	if b, err = s.repo.Get(ctx, bidID); err != nil {
		return nil, err
	}
	if bk, err = s.bookings.Get(ctx, b.BookingUUID); err != nil {
		return nil, err
	}
	if err := checkAcceptable(b, bk); err != nil {
		metrics.BidAcceptsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	breakdown, err := fee.Compute(b.Amount)
	if err != nil {
		return nil, err
	}
	charge := fee.NewPlatformCharge(b.ID, bk.ID, bk.UUID, breakdown, s.now().UTC())

	rejected, err := s.repo.Award(ctx, Award{
		Booking:   bk,
		Bid:       b,
		Charge:    charge,
		ActorRole: string(p.Role),
		ActorID:   p.IdentityID,
	})
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			metrics.BidAcceptsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	metrics.BidAcceptsTotal.WithLabelValues("accepted").Inc()
	metrics.PlatformChargeCentsTotal.Add(float64(charge.Charge.Amount))
	metrics.BookingTransitionsTotal.WithLabelValues(string(booking.StatusAwarded)).Inc()
	s.log.WithFields(logrus.Fields{
		"bid_id":      b.ID,
		"booking_id":  bk.UUID,
		"carrier_id":  b.CarrierID,
		"charge":      charge.Charge.Amount,
		"carrier_net": charge.CarrierNet.Amount,
		"rejected":    rejected,
	}).Info("bid accepted")
	b.Status = StatusAccepted
	s.emit(ctx, events.BidAccepted, b, p, &charge.Charge)
	return &charge, nil
}

func (s *Service) Get(ctx context.Context, p identity.Principal, bidID uuid.UUID) (*Bid, error) {
	b, _, err := s.loadWithBooking(ctx, p, bidID, access.ActionReadBid)
	return b, err
}

func (s *Service) ListForBooking(ctx context.Context, p identity.Principal, bookingUUID uuid.UUID) ([]Bid, error) {
	bk, err := s.bookings.Get(ctx, bookingUUID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(p, access.ActionListBookingBids, bk.Resource()).Err(); err != nil {
		return nil, err
	}
	return s.repo.ListForBooking(ctx, bk.ID)
}

// ListMine returns the caller's own bids, newest first.
func (s *Service) ListMine(ctx context.Context, p identity.Principal) ([]Bid, error) {
	if err := s.policy.Authorize(p, access.ActionListOwnBids, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	return s.repo.ListByCarrier(ctx, p.IdentityID, listLimit)
}

// Charge returns the platform charge recorded when bidID was accepted.
func (s *Service) Charge(ctx context.Context, p identity.Principal, bidID uuid.UUID) (*fee.PlatformCharge, error) {
	if _, _, err := s.loadWithBooking(ctx, p, bidID, access.ActionReadCharge); err != nil {
		return nil, err
	}
	return s.repo.GetCharge(ctx, bidID)
}

func (s *Service) loadWithBooking(ctx context.Context, p identity.Principal, bidID uuid.UUID, action access.Action) (*Bid, *booking.Booking, error) {
	b, err := s.repo.Get(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	bk, err := s.bookings.Get(ctx, b.BookingUUID)
	if err != nil {
		return nil, nil, err
	}
	res := bk.Resource()
	res.BidCarrierID = b.CarrierID
	if err := s.policy.Authorize(p, action, res).Err(); err != nil {
		return nil, nil, err
	}
	return b, bk, nil
}

func checkAcceptable(b *Bid, bk *booking.Booking) error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: bid %s is %s", errs.ErrInvalidBidState, b.ID, b.Status)
	}
	if bk.Status != booking.StatusOpen {
		return fmt.Errorf("%w: booking %s is %s", errs.ErrInvalidBidState, bk.UUID, bk.Status)
	}
	return nil
}

func requireOpen(bk *booking.Booking) error {
	if bk.Status != booking.StatusOpen {
		return fmt.Errorf("%w: booking %s is %s", errs.ErrBookingNotOpen, bk.UUID, bk.Status)
	}
	return nil
}

func lockKey(bookingUUID uuid.UUID) string {
	return "booking:" + bookingUUID.String()
}

func requireActive(p identity.Principal) error {
	if !p.Active {
		return fmt.Errorf("%w: principal is inactive", errs.ErrForbidden)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, t events.Type, b *Bid, p identity.Principal, charge *types.Money) {
	amount := b.Amount
	id := b.ID
	events.Emit(ctx, s.events, s.log, events.Event{
		Type:      t,
		BookingID: b.BookingUUID,
		BidID:     &id,
		ActorID:   p.IdentityID,
		Status:    string(b.Status),
		Amount:    &amount,
		Charge:    charge,
	})
}
