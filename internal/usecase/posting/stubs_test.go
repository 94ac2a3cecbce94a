package posting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lunch-bot/internal/domain"
)

type sentMessage struct {
	ref  domain.MessageRef
	text string
}

type reaction struct {
	messageID string
	emoji     string
}

type fakeChat struct {
	mu          sync.Mutex
	cached      bool
	fetchErr    error
	sendErr     error
	reactionErr error
	fetchCalls  int
	sent        []sentMessage
	reactions   []reaction
}

func (f *fakeChat) CachedChannel(id string) (domain.ChannelRef, bool) {
	if !f.cached {
		return domain.ChannelRef{}, false
	}
	return domain.ChannelRef{ID: id, Name: "lunsj"}, true
}

func (f *fakeChat) FetchChannel(_ context.Context, id string) (domain.ChannelRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return domain.ChannelRef{}, f.fetchErr
	}
	return domain.ChannelRef{ID: id, Name: "lunsj"}, nil
}

func (f *fakeChat) SendMessage(_ context.Context, ch domain.ChannelRef, text string) (domain.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return domain.MessageRef{}, f.sendErr
	}
	ref := domain.MessageRef{ChannelID: ch.ID, MessageID: fmt.Sprintf("m%d", len(f.sent)+1)}
	f.sent = append(f.sent, sentMessage{ref: ref, text: text})
	return ref, nil
}

func (f *fakeChat) AddReaction(_ context.Context, msg domain.MessageRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction{messageID: msg.MessageID, emoji: emoji})
	return f.reactionErr
}

func (f *fakeChat) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeFetcher struct {
	mu    sync.Mutex
	menu  domain.Menu
	err   error
	delay time.Duration
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) (domain.Menu, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Menu{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.Menu{}, f.err
	}
	return f.menu, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	date   domain.Date
	has    bool
	err    error
	marked []domain.Date
}

func (f *fakeStore) LastPosted(context.Context) (domain.Date, error) {
	if f.err != nil {
		return domain.Date{}, f.err
	}
	if !f.has {
		return domain.Date{}, domain.ErrStateNotFound
	}
	return f.date, nil
}

func (f *fakeStore) MarkPosted(_ context.Context, d domain.Date) error {
	f.marked = append(f.marked, d)
	f.date, f.has = d, true
	return nil
}

type fakeAlerter struct {
	texts []string
}

func (f *fakeAlerter) Alert(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.PostedEvent
}

func (f *fakeEvents) Publish(_ context.Context, e domain.PostedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fixedPicker time.Weekday

func (p fixedPicker) PingDay(int, int) time.Weekday { return time.Weekday(p) }

type recordingReplier struct {
	replies []string
}

func (r *recordingReplier) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

var errBoom = errors.New("boom")

func testMenu() domain.Menu {
	m := domain.DefaultCatalog().EmptyMenu()
	m.Append("Eat The Street", "Pizza Margherita")
	m.Append("Fresh 4 You", "Greek Salad")
	m.Append("Fresh 4 You", "Quinoa Bowl")
	return m
}
