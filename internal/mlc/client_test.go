package mlc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/songpipe/internal/httpclient"
)

// catalog maps a song code to its recordings' ISRCs.
type catalog struct {
	works      []Work
	recordings map[string][]string
	worksSize  int
	calls      atomic.Int32
}

func (c *catalog) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch r.URL.Path {
		case "/api2v/public/search/works":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Example Song", body["title"])
			writePage(w, c.works, pageNum, c.worksSize)
		case "/api2v/public/search/recordings":
			size, _ := strconv.Atoi(r.URL.Query().Get("size"))
			var recs []Recording
			for _, isrc := range c.recordings[r.URL.Query().Get("mlcsongCode")] {
				recs = append(recs, Recording{ISRC: isrc, Title: "Example Song"})
			}
			writePage(w, recs, pageNum, size)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writePage[T any](w http.ResponseWriter, items []T, pageNum, size int) {
	if size <= 0 {
		size = 10
	}
	total := (len(items) + size - 1) / size
	start, end := pageNum*size, (pageNum+1)*size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	_ = json.NewEncoder(w).Encode(page[T]{Content: items[start:end], TotalPages: total, Number: pageNum})
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, srv.Client(), httpclient.WithRateLimit(0, 1))
	c.PageSize = 2
	return c
}

func recordingsN(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%07d", prefix, i)
	}
	return out
}

func TestFindByISRC_SecondWorkMatches(t *testing.T) {
	cat := &catalog{
		works: []Work{
			{SongCode: "AA1", Title: "EXAMPLE SONG", ISWC: "T1111111111"},
			{SongCode: "BB2", Title: "EXAMPLE SONG", ISWC: "T-222.222.222-2"},
		},
		recordings: map[string][]string{
			"AA1": recordingsN("QZAAA", 3),
			"BB2": {"GBXXX0000001", "usrc11902726"},
		},
		worksSize: 10,
	}
	c := newTestClient(cat.server(t))

	m, err := c.FindByISRC(context.Background(), "USRC11902726", "Example Song", "Writer One")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "BB2", m.Work.SongCode)
	assert.Equal(t, "T2222222222", m.Work.ISWC)
	assert.Equal(t, 2, m.WorksScanned)
	assert.Equal(t, 5, m.RecordingsScanned)
}

func TestFindByISRC_NoExactMatch(t *testing.T) {
	cat := &catalog{
		works:      []Work{{SongCode: "AA1", Title: "EXAMPLE SONG", ISWC: "T1111111111"}},
		recordings: map[string][]string{"AA1": recordingsN("QZAAA", 4)},
		worksSize:  10,
	}
	c := newTestClient(cat.server(t))

	m, err := c.FindByISRC(context.Background(), "USRC11902726", "Example Song", "")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindByISRC_WorkBound(t *testing.T) {
	works := make([]Work, 5)
	recs := map[string][]string{}
	for i := range works {
		code := fmt.Sprintf("W%d", i)
		works[i] = Work{SongCode: code, Title: "EXAMPLE SONG"}
		recs[code] = []string{"QZAAA0000000"}
	}
	recs["W4"] = []string{"USRC11902726"}
	cat := &catalog{works: works, recordings: recs, worksSize: 2}
	c := newTestClient(cat.server(t))
	c.MaxWorks = 3

	m, err := c.FindByISRC(context.Background(), "USRC11902726", "Example Song", "")
	require.NoError(t, err)
	assert.Nil(t, m, "match lies beyond the work bound")
	// two work pages, three recording pages
	assert.Equal(t, int32(5), cat.calls.Load())
}

func TestFindByISRC_RecordingBound(t *testing.T) {
	isrcs := append(recordingsN("QZAAA", 6), "USRC11902726")
	cat := &catalog{
		works:      []Work{{SongCode: "AA1", Title: "EXAMPLE SONG"}},
		recordings: map[string][]string{"AA1": isrcs},
		worksSize:  10,
	}
	c := newTestClient(cat.server(t))
	c.MaxRecordingsPerWork = 5

	m, err := c.FindByISRC(context.Background(), "USRC11902726", "Example Song", "")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindByISRC_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.FindByISRC(context.Background(), "USRC11902726", "Example Song", "")
	var se *httpclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestFindByISRC_EmptyQuery(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", nil)
	m, err := c.FindByISRC(context.Background(), "", "Example Song", "")
	assert.NoError(t, err)
	assert.Nil(t, m)
}
