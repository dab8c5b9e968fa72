package ipc

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imeswitchd/internal/coordinator"
	"imeswitchd/internal/source"
	"imeswitchd/internal/store"
	"imeswitchd/internal/switcher"
)

var (
	abc    = source.Source{ID: "com.apple.keylayout.ABC", DisplayName: "ABC", Languages: []string{"en"}, Selectable: true}
	pinyin = source.Source{ID: "com.apple.inputmethod.SCIM.ITABC", DisplayName: "Pinyin", Languages: []string{"zh-Hans"}, Selectable: true}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Client, *source.FakeBackend) {
	t.Helper()

	fake := source.NewFakeBackend(abc, pinyin)
	reg := source.NewRegistry(fake, discard())
	require.NoError(t, reg.Refresh())
	sw := switcher.New(reg, discard(), switcher.WithSleep(func(time.Duration) {}))

	coord, err := coordinator.New(coordinator.Config{
		Registry:   reg,
		Switcher:   sw,
		Store:      store.NewMemory(),
		Log:        discard(),
		LatinID:    abc.ID,
		TapEnabled: true,
	})
	require.NoError(t, err)

	sock := filepath.Join(t.TempDir(), "d.sock")
	srv := NewServer(sock, coord, reg, discard())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	client, err := Dial(sock)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, fake
}

func TestStatusRoundTrip(t *testing.T) {
	client, _ := newTestServer(t)

	raw, err := client.Status()
	require.NoError(t, err)

	var st struct {
		LatinSourceID string `json:"latin_source_id"`
		TapEnabled    bool   `json:"tap_enabled"`
		CurrentID     string `json:"current_source_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, abc.ID, st.LatinSourceID)
	assert.Equal(t, abc.ID, st.CurrentID)
	assert.True(t, st.TapEnabled)
}

func TestListMarksActive(t *testing.T) {
	client, _ := newTestServer(t)

	sources, err := client.List()
	require.NoError(t, err)
	require.Len(t, sources, 2)

	byID := map[string]SourceInfo{}
	for _, s := range sources {
		byID[s.ID] = s
	}
	assert.True(t, byID[abc.ID].Active)
	assert.False(t, byID[abc.ID].CJKV)
	assert.False(t, byID[pinyin.ID].Active)
	assert.True(t, byID[pinyin.ID].CJKV)
}

func TestSetLastAndTap(t *testing.T) {
	client, _ := newTestServer(t)

	require.NoError(t, client.SetLast(pinyin.ID))
	require.NoError(t, client.SetTap(false))

	raw, err := client.Status()
	require.NoError(t, err)

	var st struct {
		LastNonLatinID string `json:"last_non_latin_source_id"`
		TapEnabled     bool   `json:"tap_enabled"`
	}
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, pinyin.ID, st.LastNonLatinID)
	assert.False(t, st.TapEnabled)
}

func TestSetLatinRejectsUnknown(t *testing.T) {
	client, _ := newTestServer(t)

	err := client.SetLatin("com.example.missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown input source")
}

func TestRefresh(t *testing.T) {
	client, fake := newTestServer(t)

	fake.Sources = append(fake.Sources,
		source.Source{ID: "xkb:de::ger", Languages: []string{"de"}, Selectable: true})
	require.NoError(t, client.Refresh())

	sources, err := client.List()
	require.NoError(t, err)
	assert.Len(t, sources, 3)
}

func TestUnknownOp(t *testing.T) {
	client, _ := newTestServer(t)

	_, err := client.Do(Request{Op: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")
}

func TestMultipleRequestsOneConnection(t *testing.T) {
	client, _ := newTestServer(t)

	for i := 0; i < 5; i++ {
		_, err := client.Status()
		require.NoError(t, err)
	}
}
