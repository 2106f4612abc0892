package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Roohan-gm/shopblizz-backend/internal/platform/auth"
)

var fixedTime = time.Date(2024, time.May, 15, 9, 30, 0, 0, time.UTC)

func checkoutRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:41000"
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddleware_MissingHeaderPassesThrough(t *testing.T) {
	handlerCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	Middleware(NewMemoryStore())(next).ServeHTTP(rr, checkoutRequest(`{"fullName":"Ali"}`, ""))

	if !handlerCalled {
		t.Fatal("expected handler to run without a key")
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestMiddleware_MissingHeaderRejectedWhenRequired(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked when header is missing")
	})

	rr := httptest.NewRecorder()
	Middleware(NewMemoryStore(), WithKeyRequired(true))(next).ServeHTTP(rr, checkoutRequest(`{}`, ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"orderNo":"ORD-20240515-0A1B2C3D"}`))
		}),
	)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, checkoutRequest(`{"fullName":"Ali"}`, "abc-123"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, checkoutRequest(`{"fullName":"Ali"}`, "abc-123"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if rr2.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header")
	}
	if got := rr2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content-type json, got %s", got)
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("expected body %s, got %s", rr1.Body.String(), rr2.Body.String())
	}
}

func TestMiddleware_KeysAreScopedPerClient(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	first := checkoutRequest(`{}`, "shared")
	second := checkoutRequest(`{}`, "shared")
	second.RemoteAddr = "198.51.100.2:5000"
	third := checkoutRequest(`{}`, "shared")
	third = third.WithContext(auth.WithIdentity(third.Context(), &auth.Identity{UID: "user-1"}))

	for _, req := range []*http.Request{first, second, third} {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 3 {
		t.Fatalf("expected each caller to be processed, got %d calls", calls)
	}
}

func TestMiddleware_ConflictingFingerprint(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, checkoutRequest(`{"fullName":"Ali"}`, "same-key"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, checkoutRequest(`{"fullName":"Sara"}`, "same-key"))

	if rr2.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr2.Code)
	}
	assertErrorResponse(t, rr2.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingReservationReturnsConflict(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not be invoked when reservation pending")
		}),
	)

	req := checkoutRequest(`{"fullName":"Ali"}`, "pending-key")
	scope := requester(req)
	fingerprint := requestFingerprint(req, []byte(`{"fullName":"Ali"}`), scope)
	if _, err := store.Reserve(context.Background(), "pending-key|"+scope, fingerprint, fixedTime, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, checkoutRequest(`{}`, "retry-key"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, checkoutRequest(`{}`, "retry-key"))

	if calls != 2 {
		t.Fatalf("expected retry to be processed, got %d calls", calls)
	}
	if rr1.Code != http.StatusServiceUnavailable || rr2.Code != http.StatusCreated {
		t.Fatalf("unexpected statuses %d then %d", rr1.Code, rr2.Code)
	}
}

func TestMiddleware_SaveFailureReleasesAndKeepsResponse(t *testing.T) {
	store := &stubStore{failSave: true}
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest(`{}`, "fail-key"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected original 201 response, got %d", rr.Code)
	}
	if !store.released {
		t.Fatal("expected reservation to be released")
	}
}

func TestMiddleware_StoreOutage(t *testing.T) {
	store := &stubStore{failReserve: true}
	handler := Middleware(store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run when the store is down")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest(`{}`, "k"))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_unavailable")
}

type stubStore struct {
	failReserve bool
	failSave    bool
	released    bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	if s.failReserve {
		return Reservation{}, errors.New("store down")
	}
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}

func TestMiddleware_SafeMethodsPassThrough(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/01HZX3K6Y4M3W7T2Q9B8C5D1E0", nil)
		req.Header.Set("Idempotency-Key", "read-key")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Header().Get(replayHeaderName) != "" {
			t.Fatal("reads must not be replayed")
		}
	}
	if calls != 2 {
		t.Fatalf("expected both reads to reach the handler, got %d", calls)
	}
}
