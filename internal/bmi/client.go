// Package bmi searches the BMI Songview repertoire. It is the secondary ISWC
// source and works on the public HTML search results.
package bmi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

type Client struct {
	http    *httpclient.Client
	baseURL string
}

func NewClient(baseURL string, hc *http.Client, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpclient.NewClient(hc, constants.BMIRPS, 1, append([]httpclient.Option{httpclient.WithUserAgent("Mozilla/5.0 (compatible; songpipe/1.0)")}, opts...)...),
	}
}

// Work is one row of a repertoire search.
type Work struct {
	Title      string   `json:"title"`
	ISWC       string   `json:"iswc"`
	WorkID     string   `json:"work_id"`
	Writers    []string `json:"writers"`
	Performers []string `json:"performers"`
}

// Search looks up works by title, narrowed by performer when given.
// An empty result is not an error.
func (c *Client) Search(ctx context.Context, title, performer string) ([]Work, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("Main_Search_Text", title)
	q.Set("Main_Search", "Title")
	q.Set("Search_Type", "all")
	q.Set("View_Count", "20")
	if performer != "" {
		q.Set("Sub_Search_Text", performer)
		q.Set("Sub_Search", "Performer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/Search/Search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bmi: %w", err)
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("bmi: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bmi: failed to parse results: %w", err)
	}
	return parseResults(doc), nil
}

func parseResults(doc *goquery.Document) []Work {
	var works []Work
	doc.Find(".song-result").Each(func(_ int, s *goquery.Selection) {
		w := Work{
			Title: clean(s.Find(".song-title").First().Text()),
			ISWC:  domain.NormalizeISWC(s.Find(".iswc").First().Text()),
		}
		if href, ok := s.Find(".song-title a[href]").Attr("href"); ok {
			if u, err := url.Parse(href); err == nil {
				w.WorkID = u.Query().Get("workId")
			}
		}
		s.Find(".writer-name").Each(func(_ int, n *goquery.Selection) {
			if name := clean(n.Text()); name != "" {
				w.Writers = append(w.Writers, name)
			}
		})
		s.Find(".performer-name").Each(func(_ int, n *goquery.Selection) {
			if name := clean(n.Text()); name != "" {
				w.Performers = append(w.Performers, name)
			}
		})
		if w.Title != "" {
			works = append(works, w)
		}
	})
	return works
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
