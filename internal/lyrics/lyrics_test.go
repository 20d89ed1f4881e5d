package lyrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := "[Verse 1]\r\n  Hello   darkness \n\n[Chorus]\n[00:12.34] my old friend\n(Bridge)\n\n"
	assert.Equal(t, "Hello darkness\nmy old friend", Normalize(in))
}

func TestNormalize_KeepsBracketedLyrics(t *testing.T) {
	in := "I said (yeah)\n[whispering] come closer"
	assert.Equal(t, in, Normalize(in))
}

func TestLRCLib_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get", r.URL.Path)
		switch r.URL.Query().Get("track_name") {
		case "Example Song":
			assert.Equal(t, "201", r.URL.Query().Get("duration"))
			_, _ = w.Write([]byte(`{"id":1,"trackName":"Example Song","plainLyrics":"one\ntwo"}`))
		case "Instrumental":
			_, _ = w.Write([]byte(`{"id":2,"instrumental":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l := NewLRCLib(srv.URL, srv.Client())

	text, err := l.Search(context.Background(), "Artist", "Example Song", 201000)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo", text)

	_, err = l.Search(context.Background(), "Artist", "Instrumental", 0)
	assert.ErrorIs(t, err, ErrLyricsNotFound)

	_, err = l.Search(context.Background(), "Artist", "Unknown", 0)
	assert.ErrorIs(t, err, ErrLyricsNotFound)

	_, err = l.Search(context.Background(), "", "Example Song", 0)
	assert.ErrorIs(t, err, ErrLyricsNotFound)
}

type stubSource struct {
	text string
	err  error
}

func (s stubSource) Search(context.Context, string, string, int) (string, error) {
	return s.text, s.err
}

func TestMultiSource(t *testing.T) {
	ms := MultiSource{stubSource{err: ErrLyricsNotFound}, stubSource{text: "found"}}
	text, err := ms.Search(context.Background(), "a", "t", 0)
	require.NoError(t, err)
	assert.Equal(t, "found", text)

	ms = MultiSource{stubSource{err: ErrLyricsNotFound}}
	_, err = ms.Search(context.Background(), "a", "t", 0)
	assert.ErrorIs(t, err, ErrLyricsNotFound)

	boom := errors.New("boom")
	ms = MultiSource{stubSource{err: boom}, stubSource{err: ErrLyricsNotFound}}
	_, err = ms.Search(context.Background(), "a", "t", 0)
	assert.ErrorIs(t, err, boom)
}
