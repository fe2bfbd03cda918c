// README: Booking store backed by PostgreSQL with compare-and-set status updates.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"freightbid/internal/errs"
	"freightbid/internal/infra"
	"freightbid/internal/types"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so the store can run inside
// a caller's transaction.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

var _ Repository = (*Store)(nil)

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const bookingColumns = `
	id, uuid, owner_id, origin, destination, notes, estimated_distance_km,
	status, status_version, awarded_bid_id, awarded_carrier_id,
	created_at, updated_at, published_at, awarded_at, picked_up_at, completed_at,
	cancelled_at, cancellation_reason`

// Transition is one compare-and-set status change plus its audit row.
type Transition struct {
	ID               int64
	From             Status
	To               Status
	Version          int
	AwardedBidID     *uuid.UUID
	AwardedCarrierID *types.ID
	Reason           *string
	ActorRole        string
	ActorID          *types.ID
}

// Details is a compare-and-set edit of the free-text booking fields.
type Details struct {
	ID                  int64
	Version             int
	Origin              string
	Destination         string
	Notes               string
	EstimatedDistanceKm *float64
}

func (s *Store) Create(ctx context.Context, b *Booking, actorRole string) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO bookings (
				uuid, owner_id, origin, destination, notes, estimated_distance_km,
				status, status_version, published_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, CASE WHEN $7 = 'open' THEN NOW() END)
			RETURNING id, created_at, updated_at, published_at`,
			b.UUID, string(b.OwnerID), b.Origin, b.Destination, b.Notes, b.EstimatedDistanceKm,
			string(b.Status),
		)
		if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt, &b.PublishedAt); err != nil {
			return err
		}
		return appendEvent(ctx, tx, &Event{
			BookingID:  b.ID,
			FromStatus: StatusNone,
			ToStatus:   b.Status,
			ActorRole:  actorRole,
			ActorID:    &b.OwnerID,
		})
	})
	if err != nil {
		return infra.StorageErr(fmt.Errorf("create booking: %w", err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE uuid = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("get booking: %w", err))
	}
	return b, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner types.ID, limit int) ([]Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`, string(owner), limit)
}

func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("list bookings: %w", err))
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
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

// UpdateStatus applies tr only if the row still has tr.From and tr.Version.
// It reports false when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, tr Transition) (bool, error) {
	var ok bool
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings
			SET status = $1,
			    status_version = status_version + 1,
			    updated_at = NOW(),
			    awarded_bid_id = COALESCE($2, awarded_bid_id),
			    awarded_carrier_id = COALESCE($3, awarded_carrier_id),
			    cancellation_reason = COALESCE($4, cancellation_reason),
			    published_at = CASE WHEN $1 = 'open' THEN NOW() ELSE published_at END,
			    awarded_at = CASE WHEN $1 = 'awarded' THEN NOW() ELSE awarded_at END,
			    picked_up_at = CASE WHEN $1 = 'in_transit' THEN NOW() ELSE picked_up_at END,
			    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
			    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
			WHERE id = $5 AND status = $6 AND status_version = $7`,
			string(tr.To),
			tr.AwardedBidID,
			toStringPtr(tr.AwardedCarrierID),
			tr.Reason,
			tr.ID,
			string(tr.From),
			tr.Version,
		)
		if err != nil {
			return err
		}
		if ok = tag.RowsAffected() == 1; !ok {
			return nil
		}
		return appendEvent(ctx, tx, &Event{
			BookingID:  tr.ID,
			FromStatus: tr.From,
			ToStatus:   tr.To,
			ActorRole:  tr.ActorRole,
			ActorID:    tr.ActorID,
		})
	})
	if err != nil {
		return false, infra.StorageErr(fmt.Errorf("update booking status: %w", err))
	}
	return ok, nil
}

// UpdateDetails edits a draft or open booking guarded by its version.
func (s *Store) UpdateDetails(ctx context.Context, d Details) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET origin = $1, destination = $2, notes = $3, estimated_distance_km = $4,
		    status_version = status_version + 1, updated_at = NOW()
		WHERE id = $5 AND status_version = $6 AND status IN ('draft','open')`,
		d.Origin, d.Destination, d.Notes, d.EstimatedDistanceKm, d.ID, d.Version,
	)
	if err != nil {
		return false, infra.StorageErr(fmt.Errorf("update booking: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Events(ctx context.Context, bookingID int64) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor_role, actor_id, created_at
		FROM booking_state_events WHERE booking_id = $1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, infra.StorageErr(fmt.Errorf("list booking events: %w", err))
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actor *string
		if err := rows.Scan(&e.ID, &e.BookingID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actor != nil {
			id := types.ID(*actor)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func appendEvent(ctx context.Context, db DBTX, e *Event) error {
	_, err := db.Exec(ctx, `
		INSERT INTO booking_state_events (booking_id, from_status, to_status, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5)`,
		e.BookingID, string(e.FromStatus), string(e.ToStatus), e.ActorRole, toStringPtr(e.ActorID),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*Booking, error) {
	var b Booking
	var owner string
	var awardedCarrier *string
	err := row.Scan(
		&b.ID, &b.UUID, &owner, &b.Origin, &b.Destination, &b.Notes, &b.EstimatedDistanceKm,
		&b.Status, &b.StatusVersion, &b.AwardedBidID, &awardedCarrier,
		&b.CreatedAt, &b.UpdatedAt, &b.PublishedAt, &b.AwardedAt, &b.PickedUpAt, &b.CompletedAt,
		&b.CancelledAt, &b.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	b.OwnerID = types.ID(owner)
	if awardedCarrier != nil {
		id := types.ID(*awardedCarrier)
		b.AwardedCarrierID = &id
	}
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
