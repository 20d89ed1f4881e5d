package musicbrainz

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockCache struct {
	data map[string][]byte
}

func (m *mockCache) GetCache(key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *mockCache) SetCache(key string, data []byte, ttl time.Duration) error {
	m.data[key] = data
	return nil
}

type countingLookup struct {
	meta  *RecordingMetadata
	err   error
	calls int
}

func (l *countingLookup) GetRecordingByISRC(ctx context.Context, isrc string) (*RecordingMetadata, error) {
	l.calls++
	return l.meta, l.err
}

func (l *countingLookup) GetRecordingByMBID(ctx context.Context, mbid string) (*RecordingMetadata, error) {
	l.calls++
	return l.meta, l.err
}

func TestCachedClient_GetRecording_MBIDCacheHit(t *testing.T) {
	cache := &mockCache{data: make(map[string][]byte)}
	cc := &CachedClient{
		client: nil, // must not be called on a hit
		cache:  cache,
		ttl:    time.Hour,
	}

	cache.data["mb:recording:test-mbid"] = []byte(`{"metadata":{"RecordingID":"test-mbid","Title":"Cached Title"},"not_found":false}`)

	meta, err := cc.GetRecording(context.Background(), "test-mbid", "")
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if meta == nil || meta.Title != "Cached Title" {
		t.Errorf("Expected cached title, got %+v", meta)
	}
}

func TestCachedClient_CachesNotFound(t *testing.T) {
	cache := &mockCache{data: make(map[string][]byte)}
	inner := &countingLookup{}
	cc := &CachedClient{client: inner, cache: cache, ttl: time.Hour}

	for i := 0; i < 2; i++ {
		meta, err := cc.GetRecording(context.Background(), "", "USRC11902726")
		if err != nil {
			t.Fatalf("GetRecording failed: %v", err)
		}
		if meta != nil {
			t.Errorf("Expected nil metadata, got %+v", meta)
		}
	}
	if inner.calls != 1 {
		t.Errorf("Expected one upstream call, got %d", inner.calls)
	}
}

func TestCachedClient_DoesNotCacheErrors(t *testing.T) {
	cache := &mockCache{data: make(map[string][]byte)}
	inner := &countingLookup{err: errors.New("503")}
	cc := &CachedClient{client: inner, cache: cache, ttl: time.Hour}

	for i := 0; i < 2; i++ {
		if _, err := cc.GetRecording(context.Background(), "", "USRC11902726"); err == nil {
			t.Error("Expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("Expected errors to reach upstream each time, got %d calls", inner.calls)
	}
	if len(cache.data) != 0 {
		t.Errorf("Expected nothing cached, got %v", cache.data)
	}
}

func TestCachedClient_NoKeys(t *testing.T) {
	cc := &CachedClient{client: nil, cache: &mockCache{data: map[string][]byte{}}}
	meta, err := cc.GetRecording(context.Background(), "", "")
	if meta != nil || err != nil {
		t.Errorf("Expected nil, nil; got %v, %v", meta, err)
	}
}
