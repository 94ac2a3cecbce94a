package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lunch-bot/internal/domain"
	"lunch-bot/internal/infra/config"
)

type fakeChat struct {
	sent int
}

func (c *fakeChat) CachedChannel(id string) (domain.ChannelRef, bool) {
	return domain.ChannelRef{ID: id, Name: "lunsj"}, true
}

func (c *fakeChat) FetchChannel(_ context.Context, id string) (domain.ChannelRef, error) {
	return domain.ChannelRef{ID: id}, nil
}

func (c *fakeChat) SendMessage(_ context.Context, ch domain.ChannelRef, _ string) (domain.MessageRef, error) {
	c.sent++
	return domain.MessageRef{ChannelID: ch.ID, MessageID: strings.Repeat("m", c.sent)}, nil
}

func (c *fakeChat) AddReaction(context.Context, domain.MessageRef, string) error { return nil }

type fakeEvents struct {
	events []domain.PostedEvent
}

func (f *fakeEvents) Publish(_ context.Context, e domain.PostedEvent) error {
	f.events = append(f.events, e)
	return nil
}

const previewPage = `<html><body>
<h2>Eat The Street</h2><ul><li>* Pizza margherita</li></ul>
<h2>Flow</h2><p>* Linsesuppe</p>
<h2>Fresh 4 You</h2>
</body></html>`

func TestPreviewPrintsFormattedMenu(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(previewPage))
	}))
	defer srv.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"preview", "--url", srv.URL, "--restaurants", ""})
	require.NoError(t, root.ExecuteContext(context.Background()))

	text := out.String()
	require.True(t, strings.HasPrefix(text, "**Dagens lunsj:**\n\n"), text)
	require.Contains(t, text, "**Eat The Street 🍕:**\n• Pizza margherita\n")
	require.Contains(t, text, "**Flow 🍲:**\n• Linsesuppe\n")
	require.Contains(t, text, "**Fresh 4 You 🥗:**\n\n")
}

func TestPreviewRequiresURL(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"preview", "--url", ""})
	require.Error(t, root.ExecuteContext(context.Background()))
}

func TestStateSetRejectsBadDate(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"state", "set", "19.10.2026"})
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "YYYY-MM-DD")
}

func TestWriterReplier(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writerReplier{w: &out}.Reply(context.Background(), "Lunch menu posted in <#1>!"))
	require.Equal(t, "Lunch menu posted in <#1>!\n", out.String())
}

func TestManualCommandPublishesEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(previewPage))
	}))
	defer srv.Close()

	var cfg config.AppConfig
	cfg.Discord.ChannelID = 42
	cfg.Lunch.URL = srv.URL
	cfg.Lunch.HTTPTimeout = 5 * time.Second
	cfg.Catalog = domain.DefaultCatalog()
	cfg.Location = time.UTC

	chat := &fakeChat{}
	events := &fakeEvents{}
	var out bytes.Buffer
	err := newManualCommand(cfg, chat, events, zerolog.Nop()).Execute(context.Background(), writerReplier{w: &out})
	require.NoError(t, err)

	require.Equal(t, 2, chat.sent)
	require.Len(t, events.events, 1)
	require.Equal(t, domain.TriggerManual, events.events[0].Trigger)
	require.Equal(t, "42", events.events[0].ChannelID)
	require.Equal(t, "m", events.events[0].MessageID)
	require.Equal(t, "Lunch menu posted in <#42>!\n", out.String())
}
