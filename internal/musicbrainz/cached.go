package musicbrainz

import (
	"context"
	"encoding/json"
	"time"
)

type ClientInterface interface {
	GetRecording(ctx context.Context, recordingID, isrc string) (*RecordingMetadata, error)
}

var _ ClientInterface = (*Client)(nil)
var _ ClientInterface = (*CachedClient)(nil)

type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// lookup is the uncached side; *Client satisfies it.
type lookup interface {
	GetRecordingByISRC(ctx context.Context, isrc string) (*RecordingMetadata, error)
	GetRecordingByMBID(ctx context.Context, mbid string) (*RecordingMetadata, error)
}

type CachedClient struct {
	client lookup
	cache  Cache
	ttl    time.Duration
}

func NewCachedClient(client *Client, cache Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
		ttl:    ttl,
	}
}

type cachedMetadata struct {
	Metadata *RecordingMetadata `json:"metadata"`
	NotFound bool               `json:"not_found"`
}

func (c *CachedClient) GetRecording(ctx context.Context, recordingID, isrc string) (*RecordingMetadata, error) {
	if recordingID != "" {
		return c.cached(ctx, "mb:recording:"+recordingID, func() (*RecordingMetadata, error) {
			return c.client.GetRecordingByMBID(ctx, recordingID)
		})
	}
	if isrc != "" {
		return c.cached(ctx, "mb:isrc:"+isrc, func() (*RecordingMetadata, error) {
			return c.client.GetRecordingByISRC(ctx, isrc)
		})
	}
	return nil, nil
}

// cached serves key from the cache, or calls fetch and stores the result,
// including a not-found marker. Fetch errors are never cached.
func (c *CachedClient) cached(_ context.Context, key string, fetch func() (*RecordingMetadata, error)) (*RecordingMetadata, error) {
	data, err := c.cache.GetCache(key)
	if err != nil {
		return nil, err
	}

	if data != nil {
		var cached cachedMetadata
		if unmarshalErr := json.Unmarshal(data, &cached); unmarshalErr == nil {
			return cached.Metadata, nil
		}
	}

	meta, err := fetch()
	if err != nil {
		return nil, err
	}

	cached := cachedMetadata{Metadata: meta, NotFound: meta == nil}
	if data, marshalErr := json.Marshal(cached); marshalErr == nil {
		_ = c.cache.SetCache(key, data, c.ttl)
	}

	return meta, nil
}
