package bmi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<table class="results">
  <tr class="song-result">
    <td class="song-title"><a href="/Search/Detail?workId=778899">EXAMPLE   SONG</a></td>
    <td class="iswc">T-123.456.789-0</td>
    <td><span class="writer-name">WRITER ONE</span><span class="writer-name">WRITER TWO</span></td>
    <td><span class="performer-name">MAIN ARTIST</span></td>
  </tr>
  <tr class="song-result">
    <td class="song-title"><a href="/Search/Detail?workId=1">EXAMPLE SONG (LIVE)</a></td>
    <td class="iswc"></td>
  </tr>
</table>
</body></html>`

func TestSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		assert.Equal(t, "/Search/Search", r.URL.Path)
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	works, err := c.Search(context.Background(), "Example Song", "Main Artist")
	require.NoError(t, err)
	require.Len(t, works, 2)

	assert.Contains(t, query, "Main_Search_Text=Example+Song")
	assert.Contains(t, query, "Sub_Search_Text=Main+Artist")

	assert.Equal(t, "EXAMPLE SONG", works[0].Title)
	assert.Equal(t, "T1234567890", works[0].ISWC)
	assert.Equal(t, "778899", works[0].WorkID)
	assert.Equal(t, []string{"WRITER ONE", "WRITER TWO"}, works[0].Writers)
	assert.Equal(t, []string{"MAIN ARTIST"}, works[0].Performers)
	assert.Empty(t, works[1].ISWC)
}

func TestSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>No results found</p></body></html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	works, err := c.Search(context.Background(), "Nothing", "")
	require.NoError(t, err)
	assert.Empty(t, works)

	works, err = c.Search(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Nil(t, works)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	_, err := c.Search(context.Background(), "Example Song", "")
	assert.Error(t, err)
}
