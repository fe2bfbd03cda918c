package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightbid/internal/access"
	"freightbid/internal/errs"
	httptransport "freightbid/internal/http"
	"freightbid/internal/identity"
	"freightbid/internal/modules/bid"
	"freightbid/internal/modules/booking"
	"freightbid/internal/modules/fee"
	"freightbid/internal/types"
)

// ledger backs both repositories in memory, keeping award atomic under one mutex.
type ledger struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[uuid.UUID]*booking.Booking
	bids     map[uuid.UUID]*bid.Bid
	charges  map[uuid.UUID]fee.PlatformCharge
}

func newLedger() *ledger {
	return &ledger{
		bookings: map[uuid.UUID]*booking.Booking{},
		bids:     map[uuid.UUID]*bid.Bid{},
		charges:  map[uuid.UUID]fee.PlatformCharge{},
	}
}

type bookingRepo struct{ *ledger }
type bidRepo struct{ *ledger }

func (r bookingRepo) Create(_ context.Context, b *booking.Booking, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	r.bookings[b.UUID] = &cp
	return nil
}

func (r bookingRepo) Get(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r bookingRepo) ListByOwner(_ context.Context, owner types.ID, _ int) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Booking
	for _, b := range r.bookings {
		if b.OwnerID == owner {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r bookingRepo) ListByStatus(_ context.Context, status booking.Status, _ int) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Booking
	for _, b := range r.bookings {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r bookingRepo) UpdateStatus(_ context.Context, tr booking.Transition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID != tr.ID {
			continue
		}
		if b.Status != tr.From || b.StatusVersion != tr.Version {
			return false, nil
		}
		b.Status = tr.To
		b.StatusVersion++
		if tr.Reason != nil {
			b.CancelReason = tr.Reason
		}
		return true, nil
	}
	return false, nil
}

func (r bookingRepo) UpdateDetails(_ context.Context, d booking.Details) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID != d.ID {
			continue
		}
		if b.StatusVersion != d.Version || !b.Editable() {
			return false, nil
		}
		b.Origin, b.Destination, b.Notes = d.Origin, d.Destination, d.Notes
		b.StatusVersion++
		return true, nil
	}
	return false, nil
}

func (r bidRepo) Create(_ context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bk, ok := r.bookings[b.BookingUUID]; !ok || bk.Status != booking.StatusOpen {
		return errs.ErrBookingNotOpen
	}
	b.CreatedAt = time.Now()
	cp := *b
	r.bids[b.ID] = &cp
	return nil
}

func (r bidRepo) Get(_ context.Context, id uuid.UUID) (*bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r bidRepo) ListForBooking(_ context.Context, bookingID int64) ([]bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bid.Bid
	for _, b := range r.bids {
		if b.BookingID == bookingID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r bidRepo) ListByCarrier(_ context.Context, carrier types.ID, _ int) ([]bid.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bid.Bid
	for _, b := range r.bids {
		if b.CarrierID == carrier {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r bidRepo) SetStatus(_ context.Context, id uuid.UUID, from, to bid.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bids[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (r bidRepo) Award(_ context.Context, a bid.Award) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk := r.bookings[a.Booking.UUID]
	if bk.Status != booking.StatusOpen || bk.StatusVersion != a.Booking.StatusVersion {
		return 0, errs.ErrConflict
	}
	carrier := a.Bid.CarrierID
	bidID := a.Bid.ID
	bk.Status = booking.StatusAwarded
	bk.StatusVersion++
	bk.AwardedBidID = &bidID
	bk.AwardedCarrierID = &carrier
	var rejected int64
	for _, b := range r.bids {
		switch {
		case b.ID == a.Bid.ID:
			b.Status = bid.StatusAccepted
		case b.BookingID == bk.ID && b.Status == bid.StatusPending:
			b.Status = bid.StatusRejected
			rejected++
		}
	}
	r.charges[a.Bid.ID] = a.Charge
	return rejected, nil
}

func (r bidRepo) GetCharge(_ context.Context, bidID uuid.UUID) (*fee.PlatformCharge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[bidID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

const testSecret = "router-test-secret"

type harness struct {
	router *gin.Engine
	jwt    *identity.JWTVerifier
}

func newHarness(t *testing.T, bidRate string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	l := newLedger()
	policy := access.NewPolicy()
	bookings := booking.NewService(bookingRepo{l}, policy, nil, nil, log)
	bids := bid.NewService(bidRepo{l}, bookingRepo{l}, policy, nil, nil, log)
	verifier := identity.NewJWTVerifier(testSecret, "freightbid")

	r, err := httptransport.NewRouter(httptransport.RouterDeps{
		Bookings: bookings,
		Bids:     bids,
		Resolver: identity.NewClaimsResolver(verifier),
		Log:      log,
		BidRate:  bidRate,
	})
	require.NoError(t, err)
	return &harness{router: r, jwt: verifier}
}

func (h *harness) token(t *testing.T, id string, role identity.Role) string {
	t.Helper()
	tok, err := h.jwt.Issue(identity.Principal{IdentityID: types.ID(id), Role: role, Active: true}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsStorageOutage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()
	r, err := httptransport.NewRouter(httptransport.RouterDeps{
		Resolver: identity.NewClaimsResolver(identity.NewJWTVerifier(testSecret, "freightbid")),
		Log:      log,
		Health:   func(context.Context) error { return errors.New("db down") },
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t, "")
	w := h.do(t, http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingToAwardFlow(t *testing.T) {
	h := newHarness(t, "")
	shipper := h.token(t, "shipper-1", identity.RoleCustomer)
	carrierA := h.token(t, "carrier-a", identity.RoleCarrier)
	carrierB := h.token(t, "carrier-b", identity.RoleCarrier)

	w := h.do(t, http.MethodPost, "/api/bookings", shipper, map[string]any{
		"origin":      "Chicago, IL",
		"destination": "Dallas, TX",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[booking.Booking](t, w)
	assert.Equal(t, booking.StatusDraft, created.Status)
	base := "/api/bookings/" + created.UUID.String()

	// Drafts are not biddable.
	w = h.do(t, http.MethodPost, base+"/bids", carrierA, map[string]string{"amount": "500.00"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodPost, base+"/publish", shipper, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, base+"/bids", carrierA, map[string]string{"amount": "10.00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, base+"/bids", carrierA, map[string]string{"amount": "500.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bidA := decode[bid.Bid](t, w)
	assert.Equal(t, int64(50000), bidA.Amount.Amount)

	w = h.do(t, http.MethodPost, base+"/bids", carrierB, map[string]string{"amount": "3000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bidB := decode[bid.Bid](t, w)

	// Carriers see only the summary of an open booking.
	w = h.do(t, http.MethodGet, base, carrierA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "owner_id")

	// Only the owner may accept.
	w = h.do(t, http.MethodPost, "/api/bids/"+bidA.ID.String()+"/accept", carrierB, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/bids/"+bidA.ID.String()+"/accept", shipper, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	charge := decode[map[string]any](t, w)
	display := charge["display"].(map[string]any)
	assert.Equal(t, "$25.00", display["charge"])
	assert.Equal(t, "$475.00", display["carrier_net"])

	w = h.do(t, http.MethodPost, "/api/bids/"+bidB.ID.String()+"/accept", shipper, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/api/bids/"+bidB.ID.String(), carrierB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bid.StatusRejected, decode[bid.Bid](t, w).Status)

	w = h.do(t, http.MethodGet, "/api/bids/"+bidA.ID.String()+"/charge", carrierA, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/bids/"+bidA.ID.String()+"/charge", carrierB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The awarded carrier now sees the full booking and can pick it up.
	w = h.do(t, http.MethodGet, base, carrierA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner_id")

	w = h.do(t, http.MethodPost, base+"/pickup", carrierA, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(t, http.MethodPost, base+"/complete", shipper, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StatusCompleted, decode[booking.Booking](t, w).Status)

	w = h.do(t, http.MethodPost, base+"/cancel", shipper, map[string]string{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBookingReadsHideForeignRecords(t *testing.T) {
	h := newHarness(t, "")
	owner := h.token(t, "shipper-1", identity.RoleCustomer)
	other := h.token(t, "shipper-2", identity.RoleCustomer)

	w := h.do(t, http.MethodPost, "/api/bookings", owner, map[string]any{
		"origin": "Reno, NV", "destination": "Boise, ID",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[booking.Booking](t, w).UUID.String()

	w = h.do(t, http.MethodGet, "/api/bookings/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/bookings/"+id+"/publish", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodPost, "/api/bookings/"+id+"/cancel", other, map[string]string{"reason": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodPost, "/api/bookings/"+uuid.NewString()+"/cancel", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodPatch, "/api/bookings/"+id, other, map[string]string{"notes": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/bookings/"+uuid.NewString(), owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/bookings/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingUpdateAndListings(t *testing.T) {
	h := newHarness(t, "")
	owner := h.token(t, "shipper-1", identity.RoleCustomer)
	carrier := h.token(t, "carrier-1", identity.RoleCarrier)

	w := h.do(t, http.MethodPost, "/api/bookings", owner, map[string]any{
		"origin": "Reno, NV", "destination": "Boise, ID", "publish": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	b := decode[booking.Booking](t, w)
	assert.Equal(t, booking.StatusOpen, b.Status)

	w = h.do(t, http.MethodPatch, "/api/bookings/"+b.UUID.String(), owner, map[string]string{"notes": "dock 4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "dock 4", decode[booking.Booking](t, w).Notes)

	w = h.do(t, http.MethodGet, "/api/bookings?mine=true", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[map[string][]booking.Booking](t, w)
	assert.Len(t, mine["bookings"], 1)

	w = h.do(t, http.MethodGet, "/api/bookings", carrier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	open := decode[map[string][]booking.Summary](t, w)
	assert.Len(t, open["bookings"], 1)

	w = h.do(t, http.MethodGet, "/api/bookings?mine=true", carrier, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWithdrawAndListMine(t *testing.T) {
	h := newHarness(t, "")
	owner := h.token(t, "shipper-1", identity.RoleCustomer)
	carrier := h.token(t, "carrier-1", identity.RoleCarrier)
	rival := h.token(t, "carrier-2", identity.RoleCarrier)

	w := h.do(t, http.MethodPost, "/api/bookings", owner, map[string]any{
		"origin": "Reno, NV", "destination": "Boise, ID", "publish": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[booking.Booking](t, w).UUID.String()

	w = h.do(t, http.MethodPost, "/api/bookings/"+id+"/bids", carrier, map[string]string{"amount": "$1,200.00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodPost, "/api/bookings/"+id+"/bids", carrier, map[string]string{"amount": "$1200.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[bid.Bid](t, w)

	w = h.do(t, http.MethodGet, "/api/bids?mine=true", carrier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]bid.Bid](t, w)["bids"], 1)

	w = h.do(t, http.MethodGet, "/api/bids", carrier, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/bids/"+b.ID.String()+"/withdraw", rival, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/bids/"+b.ID.String()+"/withdraw", carrier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bid.StatusWithdrawn, decode[bid.Bid](t, w).Status)

	w = h.do(t, http.MethodPost, "/api/bids/"+b.ID.String()+"/withdraw", carrier, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/api/bookings/"+id+"/bids", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]bid.Bid](t, w)["bids"], 1)
}

func TestBidSubmissionIsRateLimited(t *testing.T) {
	h := newHarness(t, "2-M")
	owner := h.token(t, "shipper-1", identity.RoleCustomer)
	carrier := h.token(t, "carrier-1", identity.RoleCarrier)

	w := h.do(t, http.MethodPost, "/api/bookings", owner, map[string]any{
		"origin": "Reno, NV", "destination": "Boise, ID", "publish": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/api/bookings/" + decode[booking.Booking](t, w).UUID.String() + "/bids"

	for i := 0; i < 2; i++ {
		w = h.do(t, http.MethodPost, path, carrier, map[string]string{"amount": "300"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w = h.do(t, http.MethodPost, path, carrier, map[string]string{"amount": "300"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
