// Package mlc queries The MLC public search API. Works are found by title and
// writer, then confirmed by paging through each work's recordings for the
// exact ISRC.
package mlc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

type Client struct {
	http    *httpclient.Client
	baseURL string

	MaxWorks             int
	MaxRecordingsPerWork int
	PageSize             int
}

func NewClient(baseURL string, hc *http.Client, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL:              strings.TrimSuffix(baseURL, "/"),
		http:                 httpclient.NewClient(hc, constants.MLCRPS, 2, opts...),
		MaxWorks:             constants.MaxWorksPerSearch,
		MaxRecordingsPerWork: constants.MaxRecordingsPerWork,
		PageSize:             constants.RecordingsPageSize,
	}
}

type Writer struct {
	FirstName string `json:"writerFirstName"`
	LastName  string `json:"writerLastName"`
	IPI       string `json:"writerIPI"`
}

func (w Writer) Name() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}

type Work struct {
	SongCode string   `json:"mlcSongCode"`
	Title    string   `json:"title"`
	ISWC     string   `json:"iswc"`
	Writers  []Writer `json:"writers"`
}

type Recording struct {
	ISRC   string `json:"isrc"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Labels string `json:"labels"`
}

type page[T any] struct {
	Content    []T `json:"content"`
	TotalPages int `json:"totalPages"`
	Number     int `json:"number"`
}

// Match is a work confirmed to contain the searched ISRC.
type Match struct {
	Work      Work
	Recording Recording
	// Scanned counts works and recordings examined before the match.
	WorksScanned      int
	RecordingsScanned int
}

// FindByISRC searches works by title and writer, then scans each work's
// recordings for isrc. Both scans are bounded by MaxWorks and
// MaxRecordingsPerWork. A nil Match with a nil error means no work
// contained the ISRC within the bounds.
func (c *Client) FindByISRC(ctx context.Context, isrc, title, writer string) (*Match, error) {
	isrc = strings.ToUpper(strings.TrimSpace(isrc))
	if isrc == "" || strings.TrimSpace(title) == "" {
		return nil, nil
	}

	scanned, recScanned := 0, 0
	for pageNum := 0; scanned < c.MaxWorks; pageNum++ {
		works, err := c.searchWorks(ctx, title, writer, pageNum)
		if err != nil {
			return nil, err
		}
		for _, w := range works.Content {
			if scanned >= c.MaxWorks {
				break
			}
			scanned++
			rec, n, err := c.findRecording(ctx, w.SongCode, isrc)
			recScanned += n
			if err != nil {
				return nil, err
			}
			if rec != nil {
				w.ISWC = domain.NormalizeISWC(w.ISWC)
				return &Match{Work: w, Recording: *rec, WorksScanned: scanned, RecordingsScanned: recScanned}, nil
			}
		}
		if len(works.Content) == 0 || pageNum+1 >= works.TotalPages {
			break
		}
	}
	return nil, nil
}

// findRecording pages through a work's recordings looking for isrc. It
// returns the number of recordings examined.
func (c *Client) findRecording(ctx context.Context, songCode, isrc string) (*Recording, int, error) {
	if songCode == "" {
		return nil, 0, nil
	}
	size := c.PageSize
	if size <= 0 || size > c.MaxRecordingsPerWork {
		size = c.MaxRecordingsPerWork
	}

	seen := 0
	for pageNum := 0; seen < c.MaxRecordingsPerWork; pageNum++ {
		recs, err := c.recordings(ctx, songCode, pageNum, size)
		if err != nil {
			return nil, seen, err
		}
		for i := range recs.Content {
			if seen >= c.MaxRecordingsPerWork {
				break
			}
			seen++
			if strings.EqualFold(strings.TrimSpace(recs.Content[i].ISRC), isrc) {
				return &recs.Content[i], seen, nil
			}
		}
		if len(recs.Content) == 0 || pageNum+1 >= recs.TotalPages {
			break
		}
	}
	return nil, seen, nil
}

func (c *Client) searchWorks(ctx context.Context, title, writer string, pageNum int) (*page[Work], error) {
	body := map[string]string{"title": title}
	if writer != "" {
		body["writerFullNames"] = writer
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + "/api2v/public/search/works?page=" + strconv.Itoa(pageNum)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", constants.MimeTypeJSON)

	var out page[Work]
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("mlc: search works: %w", err)
	}
	return &out, nil
}

func (c *Client) recordings(ctx context.Context, songCode string, pageNum, size int) (*page[Recording], error) {
	q := url.Values{}
	q.Set("mlcsongCode", songCode)
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("size", strconv.Itoa(size))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api2v/public/search/recordings?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out page[Recording]
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("mlc: recordings of %s: %w", songCode, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, req *http.Request, dest any) error {
	req.Header.Set("Accept", constants.MimeTypeJSON)
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
