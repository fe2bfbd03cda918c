// README: Bid store backed by PostgreSQL; Award settles a booking in one transaction.
package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightbid/internal/errs"
	"freightbid/internal/infra"
	"freightbid/internal/modules/booking"
	"freightbid/internal/modules/fee"
	"freightbid/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

var _ Repository = (*Store)(nil)

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bidColumns = `
	b.id, b.booking_id, bk.uuid, b.carrier_id, b.amount_cents, b.currency,
	b.status, b.created_at, b.decided_at`

// Award is everything that changes when an owner accepts a bid.
type Award struct {
	Booking   *booking.Booking
	Bid       *Bid
	Charge    fee.PlatformCharge
	ActorRole string
	ActorID   types.ID
}

// Create inserts b only while its booking is still open. The booking row is
// share-locked, so an in-flight Award either sees this bid as a sibling or
// makes the insert match nothing.
func (s *Store) Create(ctx context.Context, b *Bid) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO bids (id, booking_id, carrier_id, amount_cents, currency, status)
		SELECT $1::uuid, k.id, $3::text, $4::bigint, $5::text, $6::text
		FROM bookings k
		WHERE k.id = $2 AND k.status = 'open'
		FOR SHARE OF k
		RETURNING created_at`,
		b.ID, b.BookingID, string(b.CarrierID), b.Amount.Amount, b.Amount.Currency, string(b.Status),
	).Scan(&b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: booking %s closed before the bid was stored", errs.ErrBookingNotOpen, b.BookingUUID)
	}
	if err != nil {
		return infra.StorageErr(fmt.Errorf("create bid: %w", err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Bid, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bidColumns+`
		FROM bids b JOIN bookings bk ON bk.id = b.booking_id
		WHERE b.id = $1`, id)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("get bid: %w", err))
	}
	return b, nil
}

func (s *Store) ListForBooking(ctx context.Context, bookingID int64) ([]Bid, error) {
	return s.list(ctx, `SELECT `+bidColumns+`
		FROM bids b JOIN bookings bk ON bk.id = b.booking_id
		WHERE b.booking_id = $1 ORDER BY b.created_at`, bookingID)
}

func (s *Store) ListByCarrier(ctx context.Context, carrier types.ID, limit int) ([]Bid, error) {
	return s.list(ctx, `SELECT `+bidColumns+`
		FROM bids b JOIN bookings bk ON bk.id = b.booking_id
		WHERE b.carrier_id = $1 ORDER BY b.created_at DESC LIMIT $2`, string(carrier), limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Bid, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("list bids: %w", err))
	}
	defer rows.Close()

	out := []Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.StorageErr(err)
	}
	return out, nil
}

// SetStatus moves a bid from one status to another only if it is still in from.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bids SET status = $1, decided_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, infra.StorageErr(fmt.Errorf("update bid status: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// Award runs in one READ COMMITTED transaction: the booking CAS open->awarded,
// the winning bid pending->accepted, every sibling pending bid ->rejected and the
// platform charge row. It returns the number of rejected siblings.
func (s *Store) Award(ctx context.Context, a Award) (int64, error) {
	var rejected int64
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		carrier := a.Bid.CarrierID
		actor := a.ActorID
		ok, err := booking.NewStore(tx).UpdateStatus(ctx, booking.Transition{
			ID:               a.Booking.ID,
			From:             booking.StatusOpen,
			To:               booking.StatusAwarded,
			Version:          a.Booking.StatusVersion,
			AwardedBidID:     &a.Bid.ID,
			AwardedCarrierID: &carrier,
			ActorRole:        a.ActorRole,
			ActorID:          &actor,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %s is no longer open at version %d", errs.ErrConflict, a.Booking.UUID, a.Booking.StatusVersion)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE bids SET status = 'accepted', decided_at = NOW()
			WHERE id = $1 AND booking_id = $2 AND status = 'pending'`,
			a.Bid.ID, a.Booking.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: bid %s is no longer pending", errs.ErrInvalidBidState, a.Bid.ID)
		}

		tag, err = tx.Exec(ctx, `
			UPDATE bids SET status = 'rejected', decided_at = NOW()
			WHERE booking_id = $1 AND status = 'pending' AND id <> $2`,
			a.Booking.ID, a.Bid.ID,
		)
		if err != nil {
			return err
		}
		rejected = tag.RowsAffected()

		c := a.Charge
		_, err = tx.Exec(ctx, `
			INSERT INTO platform_charges (
				bid_id, booking_id, bid_amount_cents, charge_cents, carrier_net_cents,
				currency, charge_percentage, computed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.BidID, c.BookingID, c.BidAmount.Amount, c.Charge.Amount, c.CarrierNet.Amount,
			c.BidAmount.Currency, c.ChargePercentage, c.ComputedAt,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("%w: booking %s already has an accepted bid", errs.ErrConflict, a.Booking.UUID)
		}
		return 0, infra.StorageErr(fmt.Errorf("award bid: %w", err))
	}
	return rejected, nil
}

func (s *Store) GetCharge(ctx context.Context, bidID uuid.UUID) (*fee.PlatformCharge, error) {
	var c fee.PlatformCharge
	var currency string
	err := s.db.QueryRow(ctx, `
		SELECT pc.bid_id, pc.booking_id, bk.uuid, pc.bid_amount_cents, pc.charge_cents,
		       pc.carrier_net_cents, pc.currency, pc.charge_percentage, pc.computed_at
		FROM platform_charges pc JOIN bookings bk ON bk.id = pc.booking_id
		WHERE pc.bid_id = $1`, bidID,
	).Scan(&c.BidID, &c.BookingID, &c.BookingUUID, &c.BidAmount.Amount, &c.Charge.Amount,
		&c.CarrierNet.Amount, &currency, &c.ChargePercentage, &c.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("charge for bid %s: %w", bidID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("get charge: %w", err))
	}
	c.BidAmount.Currency, c.Charge.Currency, c.CarrierNet.Currency = currency, currency, currency
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBid(row scanner) (*Bid, error) {
	var b Bid
	var carrier string
	err := row.Scan(&b.ID, &b.BookingID, &b.BookingUUID, &carrier, &b.Amount.Amount, &b.Amount.Currency,
		&b.Status, &b.CreatedAt, &b.DecidedAt)
	if err != nil {
		return nil, err
	}
	b.CarrierID = types.ID(carrier)
	return &b, nil
}
