package quansic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler func(isrc string) (int, string)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrich-recording", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		status, resp := handler(body["isrc"])
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client())
}

func TestWorkByISRC(t *testing.T) {
	c := newServer(t, func(isrc string) (int, string) {
		switch isrc {
		case "USRC11902726":
			return http.StatusOK, `{"success":true,"data":{"isrc":"USRC11902726","title":"Example Song",
				"iswc":"T-123.456.789-0","work_title":"EXAMPLE SONG",
				"composers":[{"name":"Writer One","ipi":"00012345678","role":"Composer"}]}}`
		case "NOWORK000001":
			return http.StatusOK, `{"success":true,"data":{"isrc":"NOWORK000001","title":"Lonely","iswc":null,"work_title":"Lonely Work"}}`
		case "MISSING00001":
			return http.StatusOK, `{"success":false,"error":"Recording not found"}`
		default:
			return http.StatusOK, `{"success":false,"error":"AUTHENTICATION_FAILED"}`
		}
	})
	ctx := context.Background()

	rec, err := c.WorkByISRC(ctx, "USRC11902726")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "T1234567890", rec.ISWC)
	assert.Equal(t, "EXAMPLE SONG", rec.WorkTitle)
	require.Len(t, rec.Composers, 1)
	assert.Equal(t, "00012345678", rec.Composers[0].IPI)
	assert.NotEmpty(t, rec.Raw)

	rec, err = c.WorkByISRC(ctx, "NOWORK000001")
	require.NoError(t, err)
	assert.Empty(t, rec.ISWC)
	assert.Equal(t, "Lonely Work", rec.WorkTitle)

	rec, err = c.WorkByISRC(ctx, "MISSING00001")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = c.WorkByISRC(ctx, "OTHER0000001")
	assert.ErrorContains(t, err, "AUTHENTICATION_FAILED")
}

func TestWorkByISRC_ServerError(t *testing.T) {
	c := newServer(t, func(string) (int, string) { return http.StatusBadRequest, `bad` })
	_, err := c.WorkByISRC(context.Background(), "USRC11902726")
	assert.Error(t, err)
}

func TestWorkByISRC_InvalidPayload(t *testing.T) {
	c := newServer(t, func(string) (int, string) {
		return http.StatusOK, `{"success":true,"data":{"title":"no isrc"}}`
	})
	_, err := c.WorkByISRC(context.Background(), "USRC11902726")
	assert.ErrorContains(t, err, "invalid recording")
}

func TestWorkByISWC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrich-work", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["iswc"] == "T1234567890" {
			_, _ = w.Write([]byte(`{"success":true,"data":{"iswc":"T-123.456.789-0","title":"EXAMPLE SONG",
				"contributors":[{"name":"Writer One","ipi":"00012345678","role":"Composer"}],"recording_count":12}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"error":"Work not found"}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	work, err := c.WorkByISWC(ctx, "T1234567890")
	require.NoError(t, err)
	require.NotNil(t, work)
	assert.Equal(t, "T1234567890", work.ISWC)
	assert.Equal(t, 12, work.RecordingCount)
	require.Len(t, work.Contributors, 1)
	assert.Equal(t, "Writer One", work.Contributors[0].Name)

	work, err = c.WorkByISWC(ctx, "T0000000000")
	require.NoError(t, err)
	assert.Nil(t, work)
}
