package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/civicpay/civicpay/app/models"
	"github.com/civicpay/civicpay/app/repository"
	"github.com/civicpay/civicpay/internal/pkg/database/dbtest"
	"github.com/civicpay/civicpay/internal/pkg/jobqueue"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

const testUserID = "7f9c2d4e-1111-4a3b-9c7d-000000000001"

func newRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	return repository.NewRepositories(dbtest.Open(t))
}

func appendEffect(t *testing.T, repos *repository.Repositories, kind models.EffectKind, dedupKey string, payload interface{}) *models.OutboxEffect {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	effect := &models.OutboxEffect{
		Kind:          kind,
		DedupKey:      dedupKey,
		AggregateType: "PaymentOrder",
		AggregateID:   "order-1",
		Payload:       body,
	}
	require.NoError(t, repos.Outbox.Append(context.Background(), effect))
	return effect
}

func loadEffect(t *testing.T, repos *repository.Repositories, id string) *models.OutboxEffect {
	t.Helper()
	effect, err := repos.Outbox.GetByID(context.Background(), id)
	require.NoError(t, err)
	return effect
}

func successNotification() models.NotificationPayload {
	return models.NotificationPayload{
		UserID:            testUserID,
		Type:              "payment_success",
		Title:             "Payment Successful",
		Message:           "Your payment of ₹500.00 has been received. Receipt: RCP-TEST-0001",
		Priority:          models.NotificationPriorityNormal,
		Channels:          []string{models.NotificationChannelInApp, models.NotificationChannelEmail},
		Email:             "citizen@example.com",
		RelatedEntityType: "Payment",
		RelatedEntityID:   "payment-1",
	}
}

// fakeEnqueuer records enqueued jobs and fails for chosen effect ids
type fakeEnqueuer struct {
	mu     sync.Mutex
	jobs   []jobqueue.DeliverEffectJobPayload
	failOn map[string]bool
}

func (f *fakeEnqueuer) EnqueueJob(_ context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := jobqueue.DeliverEffectJobPayloadFromMap(payload)
	if err != nil {
		return nil, err
	}
	if f.failOn[p.EffectID] {
		return nil, errors.New("redis: connection refused")
	}
	f.jobs = append(f.jobs, *p)
	return &jobqueue.Job{ID: p.EffectID, Type: jobType, Payload: payload}, nil
}

func (f *fakeEnqueuer) effectIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.jobs))
	for _, j := range f.jobs {
		ids = append(ids, j.EffectID)
	}
	return ids
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) PutJSON(_ context.Context, key string, body []byte) error {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}
