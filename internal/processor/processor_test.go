package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BogdanMod/lego-bot-sub002/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransactor struct {
	beginErr  error
	commitErr error
}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return f.commitErr
}

type fakeEntityStore struct {
	err   error
	calls []touchCall
}

type touchCall struct {
	entityType event.EntityType
	botID      string
	entityID   string
	at         time.Time
}

func (f *fakeEntityStore) Touch(_ context.Context, entityType event.EntityType, botID, entityID string, at time.Time) error {
	f.calls = append(f.calls, touchCall{entityType, botID, entityID, at})
	return f.err
}

type fakeLedger struct {
	err   error
	calls []ledgerCall
}

type ledgerCall struct {
	botID   string
	eventID string
	at      time.Time
}

func (f *fakeLedger) MarkProcessed(_ context.Context, botID, eventID string, at time.Time) error {
	f.calls = append(f.calls, ledgerCall{botID, eventID, at})
	return f.err
}

type fakeNotifier struct {
	err   error
	notes []event.Notification
}

func (f *fakeNotifier) Publish(_ context.Context, note event.Notification) error {
	f.notes = append(f.notes, note)
	return f.err
}

func newProcessor(tx *fakeTransactor, entities *fakeEntityStore, ledger *fakeLedger, notifier *fakeNotifier) *Processor {
	return New(tx, entities, ledger, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func leadValues() map[string]interface{} {
	return map[string]interface{}{
		"event_id":    "E1",
		"bot_id":      "b1",
		"type":        "lead_created",
		"entity_type": "lead",
		"entity_id":   "L1",
	}
}

func TestProcessSuccess(t *testing.T) {
	entities := &fakeEntityStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	out := p.Process(context.Background(), "1-0", leadValues())
	require.NoError(t, out.Err)
	assert.True(t, out.Success())

	require.Len(t, entities.calls, 1)
	assert.Equal(t, event.EntityLead, entities.calls[0].entityType)
	assert.Equal(t, "b1", entities.calls[0].botID)
	assert.Equal(t, "L1", entities.calls[0].entityID)

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, "b1", ledger.calls[0].botID)
	assert.Equal(t, "E1", ledger.calls[0].eventID)

	// Entity and ledger share one timestamp with the notification.
	require.Len(t, notifier.notes, 1)
	note := notifier.notes[0]
	assert.Equal(t, "E1", note.EventID)
	assert.Equal(t, "lead_created", note.Type)
	assert.Equal(t, event.EntityLead, note.EntityType)
	assert.Equal(t, "L1", note.EntityID)
	assert.Equal(t, "b1", note.BotID)
	assert.Equal(t, entities.calls[0].at, note.ProcessedAt)
	assert.Equal(t, ledger.calls[0].at, note.ProcessedAt)
}

func TestProcessMissingBotIDIsPermanent(t *testing.T) {
	entities := &fakeEntityStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	out := p.Process(context.Background(), "1-0", map[string]interface{}{
		"event_id": "E1",
		"type":     "lead_created",
	})

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, event.ErrMissingBotID)
	assert.True(t, out.Permanent)
	assert.Empty(t, entities.calls)
	assert.Empty(t, ledger.calls)
	assert.Empty(t, notifier.notes)
}

func TestProcessUnknownEntityTypeSkipsEntityUpdate(t *testing.T) {
	entities := &fakeEntityStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	values := leadValues()
	values["entity_type"] = "unknown_type"

	out := p.Process(context.Background(), "1-0", values)
	require.NoError(t, out.Err)

	assert.Empty(t, entities.calls)
	require.Len(t, ledger.calls, 1)
	assert.Len(t, notifier.notes, 1)
}

func TestProcessNoEntityIDSkipsEntityUpdate(t *testing.T) {
	entities := &fakeEntityStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	values := leadValues()
	delete(values, "entity_id")

	out := p.Process(context.Background(), "1-0", values)
	require.NoError(t, out.Err)

	assert.Empty(t, entities.calls)
	assert.Len(t, ledger.calls, 1)
}

func TestProcessEntityFailureIsRetryable(t *testing.T) {
	entities := &fakeEntityStore{err: errors.New("db down")}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	out := p.Process(context.Background(), "1-0", leadValues())

	require.Error(t, out.Err)
	assert.False(t, out.Permanent)
	assert.Empty(t, ledger.calls, "ledger update runs after the entity update")
	assert.Empty(t, notifier.notes, "no notification without a commit")
}

func TestProcessNotifyFailureDoesNotFailAttempt(t *testing.T) {
	entities := &fakeEntityStore{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{err: errors.New("pubsub down")}
	p := newProcessor(&fakeTransactor{}, entities, ledger, notifier)

	out := p.Process(context.Background(), "1-0", leadValues())

	require.NoError(t, out.Err)
	assert.Len(t, ledger.calls, 1, "the database mutation stays authoritative")
}

func TestProcessCommitFailureIsRetryable(t *testing.T) {
	notifier := &fakeNotifier{}
	p := newProcessor(&fakeTransactor{commitErr: errors.New("commit failed")}, &fakeEntityStore{}, &fakeLedger{}, notifier)

	out := p.Process(context.Background(), "1-0", leadValues())

	require.Error(t, out.Err)
	assert.False(t, out.Permanent)
	assert.Empty(t, notifier.notes)
}
