package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/khyo-labs/mutate/internal/domain"
)

// --- Fakes ---

type fakeDeliveryStore struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*domain.WebhookDelivery
	byKey      map[string]uuid.UUID
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{
		deliveries: make(map[uuid.UUID]*domain.WebhookDelivery),
		byKey:      make(map[string]uuid.UUID),
	}
}

func (s *fakeDeliveryStore) CreateIfAbsent(_ context.Context, d *domain.WebhookDelivery) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[d.IdempotencyKey]; exists {
		return false, nil
	}
	cp := *d
	s.deliveries[d.ID] = &cp
	s.byKey[d.IdempotencyKey] = d.ID
	return true, nil
}

func (s *fakeDeliveryStore) Update(_ context.Context, d *domain.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deliveries[d.ID] = &cp
	return nil
}

func (s *fakeDeliveryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, errors.New("delivery not found")
	}
	cp := *d
	return &cp, nil
}

func (s *fakeDeliveryStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WebhookDelivery
	for _, d := range s.deliveries {
		if d.Status == domain.DeliveryStatusPending && d.CreatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeDeliveryStore) single(t *testing.T) *domain.WebhookDelivery {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deliveries) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(s.deliveries))
	}
	for _, d := range s.deliveries {
		cp := *d
		return &cp
	}
	return nil
}

func (s *fakeDeliveryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deliveries)
}

type fakeWebhookStore struct {
	mu       sync.Mutex
	webhooks map[uuid.UUID]*domain.Webhook
	touched  []uuid.UUID
}

func newFakeWebhookStore(webhooks ...*domain.Webhook) *fakeWebhookStore {
	s := &fakeWebhookStore{webhooks: make(map[uuid.UUID]*domain.Webhook)}
	for _, wh := range webhooks {
		s.webhooks[wh.ID] = wh
	}
	return s
}

func (s *fakeWebhookStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.webhooks[id]
	if !ok {
		return nil, errors.New("webhook not found")
	}
	cp := *wh
	return &cp, nil
}

func (s *fakeWebhookStore) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, id)
	return nil
}

// --- Helpers ---

type testEnv struct {
	dispatcher *Dispatcher
	deliveries *fakeDeliveryStore
	webhooks   *fakeWebhookStore
	slept      *[]time.Duration
}

func newTestDispatcher(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	deliveries := newFakeDeliveryStore()
	webhooks := newFakeWebhookStore()
	if cfg.Deliveries == nil {
		cfg.Deliveries = deliveries
	} else {
		deliveries = cfg.Deliveries.(*fakeDeliveryStore)
	}
	if cfg.Webhooks == nil {
		cfg.Webhooks = webhooks
	} else {
		webhooks = cfg.Webhooks.(*fakeWebhookStore)
	}
	cfg.AllowLocalhost = true // httptest слушает на loopback

	d := NewDispatcher(cfg)

	// Записываем backoff-задержки вместо реального ожидания
	var slept []time.Duration
	d.sleep = func(_ context.Context, delay time.Duration) error {
		slept = append(slept, delay)
		return nil
	}
	return &testEnv{dispatcher: d, deliveries: deliveries, webhooks: webhooks, slept: &slept}
}

func testJob(callbackURL string) *domain.Job {
	return &domain.Job{
		ID:              uuid.New(),
		OrganizationID:  uuid.New(),
		ConfigurationID: uuid.New(),
		FileName:        "input.xlsx",
		CallbackURL:     callbackURL,
		Status:          domain.JobStatusCompleted,
	}
}

func testPayload(job *domain.Job) domain.WebhookPayload {
	return domain.WebhookPayload{
		JobID:            job.ID,
		Status:           job.Status,
		OrganizationID:   job.OrganizationID,
		ConfigurationID:  job.ConfigurationID,
		DownloadURL:      "https://files.example.com/result.csv",
		CompletedAt:      time.Now(),
		OriginalFileName: job.FileName,
	}
}

// --- Dispatch Tests ---

func TestDispatch_SuccessFirstAttempt(t *testing.T) {
	type received struct {
		event      string
		deliveryID string
		signature  string
		userAgent  string
		body       []byte
	}
	var got received

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = received{
			event:      r.Header.Get("X-Webhook-Event"),
			deliveryID: r.Header.Get("X-Webhook-Delivery-ID"),
			signature:  r.Header.Get("X-Webhook-Signature"),
			userAgent:  r.Header.Get("User-Agent"),
			body:       body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	webhookID := uuid.New()
	env := newTestDispatcher(t, Config{
		Webhooks: newFakeWebhookStore(&domain.Webhook{
			ID:       webhookID,
			URL:      srv.URL,
			Secret:   "whsec_test",
			IsActive: true,
		}),
	})

	job := testJob("")
	cfg := &domain.Configuration{ID: job.ConfigurationID, WebhookID: &webhookID}

	if err := env.dispatcher.Dispatch(context.Background(), job, cfg, testPayload(job)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delivery := env.deliveries.single(t)
	if delivery.Status != domain.DeliveryStatusSuccess {
		t.Errorf("status = %s", delivery.Status)
	}
	if delivery.Attempts != 1 {
		t.Errorf("attempts = %d", delivery.Attempts)
	}

	if got.event != string(domain.EventTransformationCompleted) {
		t.Errorf("event header = %q", got.event)
	}
	if got.deliveryID != delivery.ID.String() {
		t.Errorf("delivery id header = %q", got.deliveryID)
	}
	if got.userAgent != "mutate-webhook/1.0" {
		t.Errorf("user agent = %q", got.userAgent)
	}
	// Подпись должна верифицироваться над байтами как они пришли
	if !VerifySignature("whsec_test", got.body, got.signature) {
		t.Error("signature does not verify against received body")
	}

	if len(env.webhooks.touched) != 1 || env.webhooks.touched[0] != webhookID {
		t.Errorf("last_used_at not touched: %v", env.webhooks.touched)
	}
}

func TestDispatch_RetriesWithExponentialBackoff(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := newTestDispatcher(t, Config{BaseDelay: time.Second})
	job := testJob(srv.URL)

	if err := env.dispatcher.Dispatch(context.Background(), job, nil, testPayload(job)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("attempts = %d", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*env.slept) != len(want) {
		t.Fatalf("backoff delays = %v", *env.slept)
	}
	for i, d := range want {
		if (*env.slept)[i] != d {
			t.Errorf("delay %d = %v, want %v", i, (*env.slept)[i], d)
		}
	}

	delivery := env.deliveries.single(t)
	if delivery.Status != domain.DeliveryStatusSuccess || delivery.Attempts != 3 {
		t.Errorf("delivery = %s after %d attempts", delivery.Status, delivery.Attempts)
	}
}

func TestDispatch_DeadLetterAfterMaxRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	env := newTestDispatcher(t, Config{MaxRetries: 5})
	job := testJob(srv.URL)

	err := env.dispatcher.Dispatch(context.Background(), job, nil, testPayload(job))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	if attempts != 5 {
		t.Errorf("attempts = %d, must stop at max", attempts)
	}
	// Задержки только между попытками: 1s, 2s, 4s, 8s
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*env.slept) != len(want) {
		t.Fatalf("backoff delays = %v", *env.slept)
	}
	for i, d := range want {
		if (*env.slept)[i] != d {
			t.Errorf("delay %d = %v, want %v", i, (*env.slept)[i], d)
		}
	}

	delivery := env.deliveries.single(t)
	if delivery.Status != domain.DeliveryStatusFailed {
		t.Errorf("status = %s, expected dead-lettered failed", delivery.Status)
	}
	if delivery.ResponseStatus != http.StatusServiceUnavailable {
		t.Errorf("response status = %d", delivery.ResponseStatus)
	}
	if delivery.NextAttemptAt != nil {
		t.Error("terminal delivery must not have a next attempt scheduled")
	}
}

func TestDispatch_CancelledDuringBackoffLeavesPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	env := newTestDispatcher(t, Config{})
	env.dispatcher.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	job := testJob(srv.URL)
	err := env.dispatcher.Dispatch(context.Background(), job, nil, testPayload(job))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	delivery := env.deliveries.single(t)
	if delivery.Status != domain.DeliveryStatusPending {
		t.Errorf("status = %s, interrupted delivery must stay pending for the sweeper", delivery.Status)
	}
	if delivery.NextAttemptAt == nil {
		t.Error("interrupted delivery should keep its schedule")
	}
}

func TestDispatch_NoDestinationIsNoop(t *testing.T) {
	env := newTestDispatcher(t, Config{})
	job := testJob("")

	if err := env.dispatcher.Dispatch(context.Background(), job, nil, testPayload(job)); err != nil {
		t.Fatalf("missing destination must not be an error: %v", err)
	}
	if env.deliveries.count() != 0 {
		t.Error("no delivery record should be created without a destination")
	}
}

func TestDispatch_DuplicateSuppressed(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := newTestDispatcher(t, Config{})
	job := testJob(srv.URL)
	payload := testPayload(job)

	if err := env.dispatcher.Dispatch(context.Background(), job, nil, payload); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := env.dispatcher.Dispatch(context.Background(), job, nil, payload); err != nil {
		t.Fatalf("duplicate dispatch must be a no-op: %v", err)
	}

	if attempts != 1 {
		t.Errorf("attempts = %d, duplicate must not hit the destination", attempts)
	}
	if env.deliveries.count() != 1 {
		t.Errorf("deliveries = %d", env.deliveries.count())
	}
}

// --- ResolveDestination Tests ---

func TestResolveDestination_JobCallbackWins(t *testing.T) {
	webhookID := uuid.New()
	env := newTestDispatcher(t, Config{
		Webhooks: newFakeWebhookStore(&domain.Webhook{
			ID:       webhookID,
			URL:      "https://org.example.com/hook",
			IsActive: true,
		}),
	})

	job := testJob("https://job.example.com/hook")
	cfg := &domain.Configuration{
		WebhookID:   &webhookID,
		CallbackURL: "https://legacy.example.com/hook",
	}

	dest, err := env.dispatcher.ResolveDestination(context.Background(), job, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.URL != "https://job.example.com/hook" {
		t.Errorf("url = %q, per-job callback must win", dest.URL)
	}
	if dest.WebhookID != nil {
		t.Error("per-job callback destination must not carry a webhook id")
	}
}

func TestResolveDestination_InvalidJobURLFallsThrough(t *testing.T) {
	webhookID := uuid.New()
	env := newTestDispatcher(t, Config{
		Webhooks: newFakeWebhookStore(&domain.Webhook{
			ID:       webhookID,
			URL:      "https://org.example.com/hook",
			Secret:   "s",
			IsActive: true,
		}),
	})

	job := testJob("ftp://bad.example.com")
	cfg := &domain.Configuration{WebhookID: &webhookID}

	dest, err := env.dispatcher.ResolveDestination(context.Background(), job, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.URL != "https://org.example.com/hook" {
		t.Errorf("url = %q, expected fall-through to org webhook", dest.URL)
	}
	if dest.WebhookID == nil || *dest.WebhookID != webhookID {
		t.Error("org webhook destination must carry its id")
	}
	if dest.Secret != "s" {
		t.Error("org webhook destination must carry its secret")
	}
}

func TestResolveDestination_InactiveWebhookFallsThrough(t *testing.T) {
	webhookID := uuid.New()
	env := newTestDispatcher(t, Config{
		Webhooks: newFakeWebhookStore(&domain.Webhook{
			ID:       webhookID,
			URL:      "https://org.example.com/hook",
			IsActive: false,
		}),
	})

	job := testJob("")
	cfg := &domain.Configuration{
		WebhookID:   &webhookID,
		CallbackURL: "https://legacy.example.com/hook",
	}

	dest, err := env.dispatcher.ResolveDestination(context.Background(), job, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.URL != "https://legacy.example.com/hook" {
		t.Errorf("url = %q, inactive webhook must be skipped", dest.URL)
	}
}

func TestResolveDestination_NoneValid(t *testing.T) {
	env := newTestDispatcher(t, Config{})
	job := testJob("not a url")
	cfg := &domain.Configuration{CallbackURL: "ftp://legacy"}

	_, err := env.dispatcher.ResolveDestination(context.Background(), job, cfg)
	if !errors.Is(err, ErrNoDestination) {
		t.Errorf("expected ErrNoDestination, got %v", err)
	}
}

// --- Replay Tests ---

func TestReplay_FailedDelivery(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := newTestDispatcher(t, Config{})
	delivery := &domain.WebhookDelivery{
		ID:             uuid.New(),
		JobID:          uuid.New(),
		URL:            srv.URL,
		EventType:      domain.EventTransformationCompleted,
		Payload:        []byte(`{"jobId":"x"}`),
		Status:         domain.DeliveryStatusFailed,
		Attempts:       5,
		Error:          "HTTP 503",
		IdempotencyKey: "key-1",
		CreatedAt:      time.Now(),
	}
	if _, err := env.deliveries.CreateIfAbsent(context.Background(), delivery); err != nil {
		t.Fatal(err)
	}

	if err := env.dispatcher.Replay(context.Background(), delivery.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if attempts != 1 {
		t.Errorf("attempts = %d", attempts)
	}
	replayed, _ := env.deliveries.GetByID(context.Background(), delivery.ID)
	if replayed.Status != domain.DeliveryStatusSuccess {
		t.Errorf("status = %s", replayed.Status)
	}
	if replayed.Attempts != 6 {
		t.Errorf("attempts counter = %d, must keep growing across replay", replayed.Attempts)
	}
}

func TestReplay_OnlyFailedDeliveries(t *testing.T) {
	env := newTestDispatcher(t, Config{})

	for _, status := range []domain.DeliveryStatus{
		domain.DeliveryStatusPending,
		domain.DeliveryStatusSuccess,
	} {
		delivery := &domain.WebhookDelivery{
			ID:             uuid.New(),
			URL:            "https://example.com/hook",
			Status:         status,
			IdempotencyKey: "key-" + string(status),
			CreatedAt:      time.Now(),
		}
		if _, err := env.deliveries.CreateIfAbsent(context.Background(), delivery); err != nil {
			t.Fatal(err)
		}

		err := env.dispatcher.Replay(context.Background(), delivery.ID)
		if !errors.Is(err, ErrDeliveryNotReplayable) {
			t.Errorf("status %s: expected ErrDeliveryNotReplayable, got %v", status, err)
		}
	}
}
