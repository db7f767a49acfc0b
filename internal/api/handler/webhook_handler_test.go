package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/api/handler"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

type webhookFixture struct {
	users *userstore.MockUserStore
	ldg   *ledger.MockLedger
	gw    *gateway.MockClient
	h     *handler.WebhookHandler

	mu       sync.Mutex
	outcomes []string
}

func newWebhookFixture(t *testing.T, perMin int) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		users: userstore.NewMockUserStore(),
		ldg:   ledger.NewMockLedger(),
		gw:    gateway.NewMockClient(),
	}
	f.h = handler.NewWebhookHandler(
		f.users, f.ldg, f.gw,
		ratelimit.NewSourceLimiter(perMin),
		zap.NewNop(),
		func(o string) {
			f.mu.Lock()
			f.outcomes = append(f.outcomes, o)
			f.mu.Unlock()
		},
	)
	return f
}

func (f *webhookFixture) post(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(handler.SignatureHeader, "test-signature")
	rec := httptest.NewRecorder()
	f.h.Receive(rec, req)
	return rec
}

func (f *webhookFixture) lastOutcome() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return ""
	}
	return f.outcomes[len(f.outcomes)-1]
}

func optedInUser(id, phone string) *domain.User {
	return &domain.User{
		ID:          id,
		PhoneNumber: &phone,
		Timezone:    "America/New_York",
		SMSOptIn:    true,
		IsActive:    true,
	}
}

func TestWebhookStopThenStart(t *testing.T) {
	f := newWebhookFixture(t, 60)
	f.users.Put(optedInUser("u1", "+15550001111"))

	rec := f.post(url.Values{"From": {"+15550001111"}, "Body": {"STOP"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("STOP: status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("STOP: content type = %q, want text/xml", ct)
	}
	if !strings.Contains(rec.Body.String(), "<Response/>") {
		t.Fatalf("STOP: body = %q, want TwiML ack", rec.Body.String())
	}

	u, err := f.users.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u.SMSOptIn {
		t.Fatal("STOP did not clear the opt-in flag")
	}

	rec = f.post(url.Values{"From": {"+15550001111"}, "Body": {"start"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("START: status = %d, want 200", rec.Code)
	}
	u, _ = f.users.GetByID(context.Background(), "u1")
	if !u.SMSOptIn {
		t.Fatal("START did not restore the opt-in flag")
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	f := newWebhookFixture(t, 60)
	f.users.Put(optedInUser("u1", "+15550001111"))
	f.gw.SignatureValid = false

	rec := f.post(url.Values{"From": {"+15550001111"}, "Body": {"STOP"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := f.lastOutcome(); got != "invalid_signature" {
		t.Fatalf("outcome = %q, want invalid_signature", got)
	}

	// A rejected request must mutate nothing.
	u, _ := f.users.GetByID(context.Background(), "u1")
	if !u.SMSOptIn {
		t.Fatal("unsigned STOP request mutated the opt-in flag")
	}
}

func TestWebhookRateLimitsPerSource(t *testing.T) {
	f := newWebhookFixture(t, 1)
	f.users.Put(optedInUser("u1", "+15550001111"))

	first := f.post(url.Values{"From": {"+15550001111"}, "Body": {"hello"}})
	if first.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", first.Code)
	}
	second := f.post(url.Values{"From": {"+15550001111"}, "Body": {"STOP"}})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", second.Code)
	}
	if got := f.lastOutcome(); got != "rate_limited" {
		t.Fatalf("outcome = %q, want rate_limited", got)
	}

	// The limited request was dropped before any processing.
	u, _ := f.users.GetByID(context.Background(), "u1")
	if !u.SMSOptIn {
		t.Fatal("rate-limited STOP request mutated the opt-in flag")
	}

	// A different source keeps its own bucket.
	other := f.post(url.Values{"From": {"+15550002222"}, "Body": {"hi"}})
	if other.Code != http.StatusOK {
		t.Fatalf("other source: status = %d, want 200", other.Code)
	}
}

func TestWebhookUnknownNumberStillAcked(t *testing.T) {
	f := newWebhookFixture(t, 60)

	rec := f.post(url.Values{"From": {"+15559998888"}, "Body": {"STOP"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response/>") {
		t.Fatalf("body = %q, want TwiML ack", rec.Body.String())
	}
}

func TestWebhookNonKeywordMessageLeavesStateAlone(t *testing.T) {
	f := newWebhookFixture(t, 60)
	f.users.Put(optedInUser("u1", "+15550001111"))

	rec := f.post(url.Values{"From": {"+15550001111"}, "Body": {"please stop sending these"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Keyword matching is exact, not substring; above must not opt out.
	u, _ := f.users.GetByID(context.Background(), "u1")
	if !u.SMSOptIn {
		t.Fatal("non-keyword message mutated the opt-in flag")
	}
}

func TestWebhookStatusCallbackUpdatesLedger(t *testing.T) {
	f := newWebhookFixture(t, 60)

	rec0, created, err := f.ldg.InsertQueued(context.Background(), "u1", domain.MessageMorningNudge, "2026-08-31")
	if err != nil || !created {
		t.Fatalf("seed record: created=%v err=%v", created, err)
	}
	if err := f.ldg.MarkSent(context.Background(), rec0.ID, "SM123"); err != nil {
		t.Fatal(err)
	}

	rec := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	got, err := f.ldg.GetByID(context.Background(), rec0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.SendDelivered {
		t.Fatalf("record status = %q, want delivered", got.Status)
	}
}

func TestWebhookRateLimitsStatusCallbacks(t *testing.T) {
	f := newWebhookFixture(t, 1)

	rec0, _, err := f.ldg.InsertQueued(context.Background(), "u1", domain.MessageMorningNudge, "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ldg.MarkSent(context.Background(), rec0.ID, "SM123"); err != nil {
		t.Fatal(err)
	}

	first := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"sent"}})
	if first.Code != http.StatusOK {
		t.Fatalf("first callback: status = %d, want 200", first.Code)
	}

	// A replayed callback is validly signed; only the limiter stops it.
	second := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("replayed callback: status = %d, want 429", second.Code)
	}
	if got := f.lastOutcome(); got != "rate_limited" {
		t.Fatalf("outcome = %q, want rate_limited", got)
	}

	// The limited callback was dropped before any ledger update.
	got, err := f.ldg.GetByID(context.Background(), rec0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.SendSent {
		t.Fatalf("record status = %q, want sent untouched", got.Status)
	}
}

func TestWebhookStatusCallbackDoesNotRegress(t *testing.T) {
	f := newWebhookFixture(t, 60)

	rec0, _, err := f.ldg.InsertQueued(context.Background(), "u1", domain.MessageMorningNudge, "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ldg.MarkSent(context.Background(), rec0.ID, "SM123"); err != nil {
		t.Fatal(err)
	}

	if rec := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}}); rec.Code != http.StatusOK {
		t.Fatalf("delivered callback: status = %d, want 200", rec.Code)
	}

	// Out-of-order 'sent' after 'delivered' is acked but applies nothing.
	stale := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"sent"}})
	if stale.Code != http.StatusOK {
		t.Fatalf("stale callback: status = %d, want 200", stale.Code)
	}

	got, err := f.ldg.GetByID(context.Background(), rec0.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.SendDelivered {
		t.Fatalf("record status = %q, want delivered unchanged", got.Status)
	}
}

func TestWebhookStatusCallbackUnknownIDIgnored(t *testing.T) {
	f := newWebhookFixture(t, 60)

	rec := f.post(url.Values{"MessageSid": {"SM404"}, "MessageStatus": {"delivered"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 ack for unknown id", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ignored") {
		t.Fatalf("body = %q, want ignored ack", rec.Body.String())
	}
}

func TestWebhookIntermediateStatusIgnored(t *testing.T) {
	f := newWebhookFixture(t, 60)

	rec0, _, err := f.ldg.InsertQueued(context.Background(), "u1", domain.MessageMorningNudge, "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ldg.MarkSent(context.Background(), rec0.ID, "SM123"); err != nil {
		t.Fatal(err)
	}

	rec := f.post(url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"sending"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	got, _ := f.ldg.GetByID(context.Background(), rec0.ID)
	if got.Status != domain.SendSent {
		t.Fatalf("record status = %q, want sent unchanged", got.Status)
	}
}
