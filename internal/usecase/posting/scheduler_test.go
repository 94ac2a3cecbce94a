package posting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"lunch-bot/internal/domain"
)

func oslo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Fatalf("не удалось загрузить часовой пояс: %v", err)
	}
	return loc
}

type harness struct {
	chat    *fakeChat
	fetcher *fakeFetcher
	store   *fakeStore
	alerter *fakeAlerter
	events  *fakeEvents
	sched   *Scheduler
}

func newHarness(t *testing.T, mutate func(*Options, *Deps)) *harness {
	t.Helper()
	h := &harness{
		chat:    &fakeChat{cached: true},
		fetcher: &fakeFetcher{menu: testMenu()},
		store:   &fakeStore{},
		alerter: &fakeAlerter{},
		events:  &fakeEvents{},
	}
	opts := Options{
		ChannelID:  "1234567890",
		MenuURL:    "https://example.org/lunsj",
		Location:   oslo(t),
		Mention:    domain.MentionAlways,
		AlertAfter: 3,
	}
	deps := Deps{Chat: h.chat, Fetcher: h.fetcher, Store: h.store, Alerter: h.alerter, Events: h.events, PingDays: fixedPicker(time.Wednesday)}
	if mutate != nil {
		mutate(&opts, &deps)
	}
	h.sched = NewScheduler(deps, domain.DefaultCatalog(), opts, zerolog.Nop())
	return h
}

func at(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, oslo(t))
}

func TestOnTickSkipsWeekends(t *testing.T) {
	h := newHarness(t, nil)
	for _, now := range []time.Time{at(t, 2026, time.October, 17, 11, 0), at(t, 2026, time.October, 18, 11, 0)} {
		h.sched.OnTick(context.Background(), now)
	}
	if len(h.chat.messages()) != 0 || h.fetcher.callCount() != 0 || h.chat.fetchCalls != 0 {
		t.Fatal("в выходные не должно быть побочных эффектов")
	}
	if _, ok := h.sched.LastPosted(); ok {
		t.Fatal("дата публикации не должна выставляться в выходные")
	}
}

func TestOnTickUsesConfiguredTimezone(t *testing.T) {
	h := newHarness(t, nil)

	// Пятница 22:30 UTC: уже суббота в Осло.
	h.sched.OnTick(context.Background(), time.Date(2026, time.October, 23, 22, 30, 0, 0, time.UTC))
	if len(h.chat.messages()) != 0 {
		t.Fatal("суббота по Осло не должна публиковаться")
	}

	// Воскресенье 22:30 UTC: уже понедельник в Осло.
	h.sched.OnTick(context.Background(), time.Date(2026, time.October, 18, 22, 30, 0, 0, time.UTC))
	if len(h.chat.messages()) != 1 {
		t.Fatalf("ожидали публикацию в понедельник по Осло, получили %d", len(h.chat.messages()))
	}
	last, _ := h.sched.LastPosted()
	if last.String() != "2026-10-19" {
		t.Fatalf("ожидали дату 2026-10-19, получили %s", last)
	}
}

func TestOnTickPostsOncePerDay(t *testing.T) {
	h := newHarness(t, nil)
	now := at(t, 2026, time.October, 19, 9, 0)

	h.sched.OnTick(context.Background(), now)

	sent := h.chat.messages()
	if len(sent) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(sent))
	}
	if !strings.HasPrefix(sent[0].text, MentionEveryone+"\n**Dagens lunsj:**") {
		t.Fatalf("неожиданный текст: %q", sent[0].text)
	}
	catalog := domain.DefaultCatalog()
	if len(h.chat.reactions) != len(catalog) {
		t.Fatalf("ожидали %d реакций, получили %d", len(catalog), len(h.chat.reactions))
	}
	for i, r := range catalog {
		if h.chat.reactions[i].emoji != r.Emoji || h.chat.reactions[i].messageID != sent[0].ref.MessageID {
			t.Fatalf("реакция %d: неожиданное значение %+v", i, h.chat.reactions[i])
		}
	}
	last, ok := h.sched.LastPosted()
	if !ok || last != domain.DateOf(now) {
		t.Fatalf("ожидали дату %s, получили %s", domain.DateOf(now), last)
	}
	if len(h.store.marked) != 1 || h.store.marked[0] != domain.DateOf(now) {
		t.Fatalf("дата должна быть сохранена в хранилище: %v", h.store.marked)
	}
	if len(h.events.events) != 1 || h.events.events[0].Trigger != domain.TriggerScheduled {
		t.Fatalf("ожидали одно событие scheduled: %+v", h.events.events)
	}

	for _, later := range []time.Time{now.Add(15 * time.Minute), now.Add(8 * time.Hour)} {
		h.sched.OnTick(context.Background(), later)
	}
	if len(h.chat.messages()) != 1 || h.fetcher.callCount() != 1 || len(h.chat.reactions) != len(catalog) {
		t.Fatal("повторные тики в тот же день не должны иметь побочных эффектов")
	}

	h.sched.OnTick(context.Background(), now.AddDate(0, 0, 1))
	if len(h.chat.messages()) != 2 {
		t.Fatal("на следующий будний день меню должно публиковаться снова")
	}
}

func TestOnTickFetchFailureKeepsState(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = &domain.FetchError{Status: 503}
	now := at(t, 2026, time.October, 20, 9, 0)

	h.sched.OnTick(context.Background(), now)
	if len(h.chat.messages()) != 0 {
		t.Fatal("при ошибке загрузки сообщение не отправляется")
	}
	if _, ok := h.sched.LastPosted(); ok {
		t.Fatal("дата не должна меняться при ошибке загрузки")
	}

	h.fetcher.err = nil
	h.sched.OnTick(context.Background(), now.Add(15*time.Minute))
	if len(h.chat.messages()) != 1 {
		t.Fatal("следующий тик должен повторить попытку")
	}
}

func TestOnTickSendFailureKeepsState(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.sendErr = &domain.SendError{Forbidden: true, Err: errBoom}

	h.sched.OnTick(context.Background(), at(t, 2026, time.October, 21, 9, 0))
	if h.fetcher.callCount() != 1 {
		t.Fatal("меню должно быть загружено")
	}
	if _, ok := h.sched.LastPosted(); ok {
		t.Fatal("дата не должна меняться при ошибке отправки")
	}
	if len(h.chat.reactions) != 0 || len(h.store.marked) != 0 {
		t.Fatal("после ошибки отправки не должно быть реакций и сохранения")
	}
}

func TestOnTickReactionFailureStillCommits(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.reactionErr = errBoom
	now := at(t, 2026, time.October, 22, 9, 0)

	h.sched.OnTick(context.Background(), now)
	if len(h.chat.reactions) != len(domain.DefaultCatalog()) {
		t.Fatal("ошибка одной реакции не должна прерывать остальные")
	}
	last, ok := h.sched.LastPosted()
	if !ok || last != domain.DateOf(now) {
		t.Fatal("ошибки реакций не должны откатывать публикацию")
	}
}

func TestOnTickChannelFallbackAndFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.chat.cached = false
	h.chat.fetchErr = errBoom
	now := at(t, 2026, time.October, 19, 9, 0)

	h.sched.OnTick(context.Background(), now)
	if h.chat.fetchCalls != 1 {
		t.Fatalf("ожидали запрос канала через API, получили %d", h.chat.fetchCalls)
	}
	if h.fetcher.callCount() != 0 || len(h.chat.messages()) != 0 {
		t.Fatal("без канала меню не загружается и не отправляется")
	}
	if _, ok := h.sched.LastPosted(); ok {
		t.Fatal("дата не должна меняться без канала")
	}

	h.chat.fetchErr = nil
	h.sched.OnTick(context.Background(), now.Add(15*time.Minute))
	if len(h.chat.messages()) != 1 {
		t.Fatal("после появления канала меню должно публиковаться")
	}
}

func TestOnTickConcurrentTicksPostOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.delay = 50 * time.Millisecond
	now := at(t, 2026, time.October, 19, 9, 0)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(offset time.Duration) {
			defer wg.Done()
			h.sched.OnTick(context.Background(), now.Add(offset))
		}(time.Duration(i) * time.Second)
	}
	wg.Wait()

	if got := len(h.chat.messages()); got != 1 {
		t.Fatalf("ожидали ровно одно сообщение, получили %d", got)
	}
	if h.fetcher.callCount() != 1 {
		t.Fatalf("второй тик должен увидеть сохранённую дату, загрузок: %d", h.fetcher.callCount())
	}
}

func TestOnTickRespectsPostAfter(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *Deps) { o.PostAfter = 10*time.Hour + 30*time.Minute })

	h.sched.OnTick(context.Background(), at(t, 2026, time.October, 19, 10, 29))
	if len(h.chat.messages()) != 0 {
		t.Fatal("до 10:30 меню не публикуется")
	}
	h.sched.OnTick(context.Background(), at(t, 2026, time.October, 19, 10, 30))
	if len(h.chat.messages()) != 1 {
		t.Fatal("после 10:30 меню должно публиковаться")
	}
}

func TestOnTickMentionModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    domain.MentionMode
		day     int
		mention bool
	}{
		{name: "always", mode: domain.MentionAlways, day: 19, mention: true},
		{name: "never", mode: domain.MentionNever, day: 19, mention: false},
		{name: "weekly other day", mode: domain.MentionWeekly, day: 19, mention: false},
		{name: "weekly ping day", mode: domain.MentionWeekly, day: 21, mention: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options, _ *Deps) { o.Mention = tt.mode })
			h.sched.OnTick(context.Background(), at(t, 2026, time.October, tt.day, 9, 0))
			sent := h.chat.messages()
			if len(sent) != 1 {
				t.Fatalf("ожидали одно сообщение, получили %d", len(sent))
			}
			if got := strings.HasPrefix(sent[0].text, MentionEveryone); got != tt.mention {
				t.Fatalf("упоминание: ожидали %v, получили %v", tt.mention, got)
			}
		})
	}
}

func TestOnTickAlertsOncePerFailureStreak(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.err = errBoom
	now := at(t, 2026, time.October, 19, 9, 0)

	for i := 0; i < 5; i++ {
		h.sched.OnTick(context.Background(), now.Add(time.Duration(i)*15*time.Minute))
	}
	if len(h.alerter.texts) != 1 {
		t.Fatalf("ожидали одно оповещение, получили %d", len(h.alerter.texts))
	}
	if !strings.Contains(h.alerter.texts[0], "3 attempts") {
		t.Fatalf("оповещение должно содержать число попыток: %q", h.alerter.texts[0])
	}
	if st := h.sched.Status(now); st.ConsecutiveFailures != 5 {
		t.Fatalf("ожидали 5 неудач подряд, получили %d", st.ConsecutiveFailures)
	}

	h.fetcher.err = nil
	h.sched.OnTick(context.Background(), now.Add(2*time.Hour))
	if len(h.alerter.texts) != 2 || !strings.Contains(h.alerter.texts[1], "posted again after 5") {
		t.Fatalf("ожидали оповещение о восстановлении: %v", h.alerter.texts)
	}
	if st := h.sched.Status(now); st.ConsecutiveFailures != 0 || st.LastPosted != "2026-10-19" {
		t.Fatalf("неожиданный статус: %+v", st)
	}
}

func TestRestoreSuppressesSameDayPost(t *testing.T) {
	h := newHarness(t, nil)
	h.store.date, h.store.has = domain.Date{Year: 2026, Month: time.October, Day: 19}, true

	if err := h.sched.Restore(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	h.sched.OnTick(context.Background(), at(t, 2026, time.October, 19, 12, 0))
	if len(h.chat.messages()) != 0 {
		t.Fatal("восстановленная дата должна блокировать повторную публикацию")
	}
}

func TestRestoreEmptyAndFailingStore(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.sched.Restore(context.Background()); err != nil {
		t.Fatalf("пустое хранилище не ошибка: %v", err)
	}
	if _, ok := h.sched.LastPosted(); ok {
		t.Fatal("дата не должна появляться из пустого хранилища")
	}
	h.store.err = errBoom
	if err := h.sched.Restore(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("ожидали ошибку хранилища, получили %v", err)
	}
}

func TestOnTickWithoutOptionalDeps(t *testing.T) {
	h := newHarness(t, func(_ *Options, d *Deps) {
		d.Store, d.Alerter, d.Events = nil, nil, nil
	})
	h.sched.OnTick(context.Background(), at(t, 2026, time.October, 19, 9, 0))
	if _, ok := h.sched.LastPosted(); !ok {
		t.Fatal("без хранилища состояние живёт в памяти")
	}
}

func TestRandomWeekdayStableWithinWeek(t *testing.T) {
	a := NewRandomWeekday(42)
	b := NewRandomWeekday(42)
	for week := 1; week <= 10; week++ {
		day := a.PingDay(2026, week)
		if day < time.Monday || day > time.Friday {
			t.Fatalf("неделя %d: выбран выходной %v", week, day)
		}
		if again := a.PingDay(2026, week); again != day {
			t.Fatalf("неделя %d: день изменился %v -> %v", week, day, again)
		}
		if other := b.PingDay(2026, week); other != day {
			t.Fatalf("одинаковый seed должен давать одинаковые дни")
		}
	}
}

