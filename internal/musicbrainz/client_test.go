package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const isrcSearchBody = `{
	"recordings": [{
		"id": "rec-1",
		"title": "Example Song",
		"length": 201000,
		"isrcs": ["USRC11902726"],
		"artist-credit": [
			{"name": "Main Artist", "joinphrase": " feat. ", "artist": {"id": "a1", "name": "Main Artist"}},
			{"name": "Guest", "joinphrase": "", "artist": {"id": "a2", "name": "Guest"}}
		],
		"releases": [
			{"id": "r1", "title": "Bootleg", "status": "Bootleg", "date": "2018"},
			{"id": "r2", "title": "Album", "status": "Official", "date": "2019-05-01"}
		]
	}]
}`

func TestClient_GetRecordingByISRC(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(isrcSearchBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	meta, err := c.GetRecordingByISRC(context.Background(), "USRC11902726")
	if err != nil {
		t.Fatalf("GetRecordingByISRC failed: %v", err)
	}

	if !strings.Contains(gotPath, "isrc:USRC11902726") {
		t.Errorf("Expected ISRC query, got %s", gotPath)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("Expected user agent %q, got %q", DefaultUserAgent, gotUA)
	}
	if meta.RecordingID != "rec-1" || meta.Title != "Example Song" {
		t.Errorf("Unexpected metadata: %+v", meta)
	}
	if meta.Artist != "Main Artist feat. Guest" {
		t.Errorf("Expected joined credit, got %q", meta.Artist)
	}
	if meta.Album != "Album" {
		t.Errorf("Expected official release, got %q", meta.Album)
	}
	if meta.Duration != 201000 {
		t.Errorf("Expected duration 201000, got %d", meta.Duration)
	}
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/recording/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"recordings": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())

	meta, err := c.GetRecordingByISRC(context.Background(), "XX0000000000")
	if err != nil || meta != nil {
		t.Errorf("Expected nil, nil for empty search; got %v, %v", meta, err)
	}

	meta, err = c.GetRecordingByMBID(context.Background(), "missing")
	if err != nil || meta != nil {
		t.Errorf("Expected nil, nil for 404; got %v, %v", meta, err)
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	if _, err := c.GetRecording(context.Background(), "", "USRC11902726"); err == nil {
		t.Error("Expected error for 500")
	}
}

func TestSelectRelease(t *testing.T) {
	if selectRelease(nil) != nil {
		t.Error("Expected nil for no releases")
	}
	rel := selectRelease([]release{{Title: "First"}, {Title: "Second"}})
	if rel.Title != "First" {
		t.Errorf("Expected first release fallback, got %s", rel.Title)
	}
}
