package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/namdorg/engage-upgrades/internal/app"
	"github.com/namdorg/engage-upgrades/internal/domain"
	"github.com/sirupsen/logrus"
)

const testToken = "internal-secret"

type stubServices struct {
	snapshot domain.StockSnapshot
	event    []domain.StockSnapshot
	reserve  app.ReserveResult
	finalize app.FinalizeResult
	release  app.ReleaseResult
	expired  int
	err      error

	reserveIn  app.ReserveInput
	finalizeIn app.FinalizeInput
	releaseIn  []string
	eventIn    string
	expireIn   []string
	calls      int
}

func (s *stubServices) Snapshot(_ context.Context, unitID string) (domain.StockSnapshot, error) {
	s.calls++
	snap := s.snapshot
	snap.UnitID = unitID
	return snap, s.err
}

func (s *stubServices) EventStock(_ context.Context, eventID string) ([]domain.StockSnapshot, error) {
	s.calls++
	s.eventIn = eventID
	return s.event, s.err
}

func (s *stubServices) Reserve(_ context.Context, in app.ReserveInput) (app.ReserveResult, error) {
	s.calls++
	s.reserveIn = in
	return s.reserve, s.err
}

func (s *stubServices) Finalize(_ context.Context, in app.FinalizeInput) (app.FinalizeResult, error) {
	s.calls++
	s.finalizeIn = in
	return s.finalize, s.err
}

func (s *stubServices) Release(_ context.Context, ids []string) (app.ReleaseResult, error) {
	s.calls++
	s.releaseIn = ids
	return s.release, s.err
}

func (s *stubServices) ExpireReservations(_ context.Context, ids []string) (int, error) {
	s.calls++
	s.expireIn = ids
	return s.expired, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(stub *stubServices, webhookSecret string) http.Handler {
	return NewRouter(Services{
		Stock:        stub,
		Reservations: stub,
		Settlement:   stub,
		Expiry:       stub,
	}, RouterOptions{
		ServiceName:         "engage-upgrades-test",
		Logger:              quietLogger(),
		InternalToken:       testToken,
		StripeWebhookSecret: webhookSecret,
	})
}

func doRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testToken}
}
