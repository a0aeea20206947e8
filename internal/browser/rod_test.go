package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
)

// Live browser tests need a local Chromium and are skipped with -short.
func newLiveFactory(t *testing.T) *RodFactory {
	t.Helper()
	if testing.Short() {
		t.Skip("live browser test")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no chromium binary found")
	}

	cfg := config.DefaultConfig().Browser
	cfg.PageTimeout = 20 * time.Second
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	f, err := NewRodFactory(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRodSessionLive(t *testing.T) {
	f := newLiveFactory(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body style="height:3000px">
<div class="route_details"><a class="route" href="/next"> Guwahati to Tezpur </a></div>
</body></html>`)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p id="marker">next</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	s, err := f.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Navigate(ctx, srv.URL+"/"))

	container, ok := s.Find(ctx, CSS(".route_details"))
	require.True(t, ok)
	link, ok := container.Find(XPath(".//a"))
	require.True(t, ok)
	name, err := link.Text()
	require.NoError(t, err)
	assert.Equal(t, "Guwahati to Tezpur", name)

	h, err := s.PageHeight(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h, 3000)
	require.NoError(t, s.ScrollToBottom(ctx))

	require.NoError(t, s.Click(ctx, link))
	ok = WaitUntil(ctx, 10*time.Second, 50*time.Millisecond, func(ctx context.Context) bool {
		_, found := s.Find(ctx, CSS("#marker"))
		return found
	})
	assert.True(t, ok)
}

func TestRodSessionCallsAreBounded(t *testing.T) {
	f := newLiveFactory(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="bus-item">ASTC Volvo</div></body></html>`)
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := f.NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Navigate(ctx, srv.URL))

	// nodes stay readable after the lookup's own timeout is released
	items := s.FindAll(ctx, CSS(".bus-item"))
	require.Len(t, items, 1)
	text, err := items[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "ASTC Volvo", text)

	rs := s.(*rodSession)
	rs.timeout = time.Nanosecond

	_, err = s.PageHeight(ctx)
	assert.Error(t, err)
	assert.Error(t, s.ScrollToBottom(ctx))
	assert.Empty(t, s.FindAll(ctx, CSS(".bus-item")))
}
