// Package resolver discovers a recording's ISWC by trying a chain of
// providers, caching every definitive answer by ISRC. Work-level records
// are cached by ISWC and shared by every recording of the work.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/cesargomez89/songpipe/internal/bmi"
	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/mlc"
	"github.com/cesargomez89/songpipe/internal/quansic"
	"github.com/cesargomez89/songpipe/internal/store"
)

var ErrNoQuery = errors.New("resolver: query has no ISRC")

type Query struct {
	ISRC      string
	Title     string
	Performer string
}

type Primary interface {
	WorkByISRC(ctx context.Context, isrc string) (*quansic.Recording, error)
}

type Secondary interface {
	Search(ctx context.Context, title, performer string) ([]bmi.Work, error)
}

type Tertiary interface {
	FindByISRC(ctx context.Context, isrc, title, writer string) (*mlc.Match, error)
}

// WorkSource returns work-level data for an ISWC. *quansic.Client
// implements it.
type WorkSource interface {
	WorkByISWC(ctx context.Context, iswc string) (*quansic.Work, error)
}

// IdentifierCache is the persistent cache, implemented by *store.DB.
type IdentifierCache interface {
	GetIdentifier(ctx context.Context, key string) (*domain.IdentifierRecord, error)
	PutIdentifier(ctx context.Context, rec *domain.IdentifierRecord) error
}

// L1 is an optional faster tier consulted before the persistent cache.
type L1 interface {
	Get(ctx context.Context, key string) (*domain.IdentifierRecord, error)
	Set(ctx context.Context, rec *domain.IdentifierRecord) error
}

type Chain struct {
	cache     IdentifierCache
	l1        L1
	primary   Primary
	secondary Secondary
	tertiary  Tertiary
	works     WorkSource
	logger    *logger.Logger
	group     singleflight.Group
}

type Option func(*Chain)

func WithL1(l1 L1) Option {
	return func(c *Chain) { c.l1 = l1 }
}

// WithWorks enables work-level records for every resolved ISWC.
func WithWorks(w WorkSource) Option {
	return func(c *Chain) { c.works = w }
}

// NewChain builds a chain. Any provider may be nil, in which case it is
// skipped without degrading the result.
func NewChain(cache IdentifierCache, primary Primary, secondary Secondary, tertiary Tertiary, log *logger.Logger, opts ...Option) *Chain {
	if log == nil {
		log = logger.Default()
	}
	c := &Chain{
		cache:     cache,
		primary:   primary,
		secondary: secondary,
		tertiary:  tertiary,
		logger:    log.WithComponent("resolver"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the cached record for q.ISRC or resolves it through the
// providers. A not-found record with Degraded set was produced while some
// provider failed; it is returned but never cached. The returned error is
// reserved for cache failures and invalid queries.
func (c *Chain) Resolve(ctx context.Context, q Query) (*domain.IdentifierRecord, error) {
	q.ISRC = strings.ToUpper(strings.TrimSpace(q.ISRC))
	if q.ISRC == "" {
		return nil, ErrNoQuery
	}
	key := store.IdentifierKey(q.ISRC)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if rec, err := c.lookup(ctx, key); err != nil || rec != nil {
			return rec, err
		}
		rec := c.resolve(ctx, key, q)
		if !rec.NotFound {
			c.attachWork(ctx, rec)
		}
		if !rec.Degraded {
			if err := c.cache.PutIdentifier(ctx, rec); err != nil {
				return nil, fmt.Errorf("failed to cache %s: %w", key, err)
			}
			c.setL1(ctx, rec)
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.IdentifierRecord), nil
}

func (c *Chain) lookup(ctx context.Context, key string) (*domain.IdentifierRecord, error) {
	if c.l1 != nil {
		rec, err := c.l1.Get(ctx, key)
		if err != nil {
			c.logger.Warn("L1 cache read failed", "key", key, "error", err)
		} else if rec != nil {
			c.logger.Debug("identifier cache hit", "key", key, "tier", "l1")
			return rec, nil
		}
	}
	rec, err := c.cache.GetIdentifier(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		c.logger.Debug("identifier cache hit", "key", key, "tier", "store")
		c.setL1(ctx, rec)
	}
	return rec, nil
}

// attachWork links rec to the work-level record of its ISWC, fetching and
// caching that record on first sight. Recording lookups that brought no
// contributors take the work's. Work lookup failures only log.
func (c *Chain) attachWork(ctx context.Context, rec *domain.IdentifierRecord) {
	iswc := rec.ISWC()
	if iswc == "" {
		return
	}
	key := store.WorkKey(iswc)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.work(ctx, key, iswc)
	})
	if err != nil {
		c.logger.Warn("work lookup failed", "iswc", iswc, "error", err)
		return
	}
	work, _ := v.(*domain.IdentifierRecord)
	if work == nil || work.NotFound {
		return
	}
	if rec.Metadata == nil {
		rec.Metadata = domain.JSONMap{}
	}
	rec.Metadata["work_key"] = work.NaturalKey
	if len(rec.Contributors) == 0 {
		rec.Contributors = work.Contributors
	}
}

func (c *Chain) work(ctx context.Context, key, iswc string) (*domain.IdentifierRecord, error) {
	rec, err := c.lookup(ctx, key)
	if err != nil || rec != nil || c.works == nil {
		return rec, err
	}
	w, err := c.works.WorkByISWC(ctx, iswc)
	if err != nil {
		return nil, err
	}
	rec = fromQuansicWork(key, iswc, w)
	if err := c.cache.PutIdentifier(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to cache %s: %w", key, err)
	}
	c.setL1(ctx, rec)
	return rec, nil
}

func (c *Chain) setL1(ctx context.Context, rec *domain.IdentifierRecord) {
	if c.l1 == nil {
		return
	}
	if err := c.l1.Set(ctx, rec); err != nil {
		c.logger.Warn("L1 cache write failed", "key", rec.NaturalKey, "error", err)
	}
}

func (c *Chain) resolve(ctx context.Context, key string, q Query) *domain.IdentifierRecord {
	degraded := false
	workTitle := ""

	if c.primary != nil {
		rec, err := c.primary.WorkByISRC(ctx, q.ISRC)
		switch {
		case err != nil:
			degraded = true
			c.logger.Warn("primary provider failed", "isrc", q.ISRC, "error", err)
		case rec != nil && rec.ISWC != "":
			return fromQuansic(key, rec)
		case rec != nil && rec.WorkTitle != "":
			workTitle = rec.WorkTitle
			c.logger.Info("primary provider knows the work but not its ISWC", "isrc", q.ISRC, "work_title", rec.WorkTitle)
		}
	}

	title := NormalizeTitle(q.Title)
	if title == "" {
		title = NormalizeTitle(workTitle)
	}
	if ctx.Err() != nil {
		return notFound(key, true)
	}

	if c.secondary != nil && title != "" {
		works, err := c.secondary.Search(ctx, title, PrimaryPerformer(q.Performer))
		if err != nil {
			degraded = true
			c.logger.Warn("secondary provider failed", "isrc", q.ISRC, "error", err)
		}
		for i := range works {
			if works[i].ISWC != "" {
				return fromBMI(key, &works[i])
			}
		}
	}
	if ctx.Err() != nil {
		return notFound(key, true)
	}

	if c.tertiary != nil && title != "" {
		m, err := c.tertiary.FindByISRC(ctx, q.ISRC, SanitizeTitle(title), PrimaryPerformer(q.Performer))
		switch {
		case err != nil:
			degraded = true
			c.logger.Warn("tertiary provider failed", "isrc", q.ISRC, "error", err)
		case m != nil && m.Work.ISWC != "":
			return fromMLC(key, m)
		case m != nil:
			c.logger.Info("verified work has no ISWC", "isrc", q.ISRC, "song_code", m.Work.SongCode)
		}
	}

	return notFound(key, degraded)
}

func notFound(key string, degraded bool) *domain.IdentifierRecord {
	return &domain.IdentifierRecord{
		NaturalKey: key,
		KeyType:    domain.KeyTypeISRC,
		NotFound:   true,
		Degraded:   degraded,
		Metadata:   domain.JSONMap{},
	}
}

func found(key, iswc, source, title string, contributors domain.Contributors, meta domain.JSONMap, raw any) *domain.IdentifierRecord {
	var payload domain.RawJSON
	if data, err := json.Marshal(raw); err == nil {
		payload = data
	}
	return &domain.IdentifierRecord{
		NaturalKey:         key,
		KeyType:            domain.KeyTypeISRC,
		ResolvedIdentifier: &iswc,
		Source:             source,
		Title:              title,
		Contributors:       contributors,
		Metadata:           meta,
		RawPayload:         payload,
	}
}

func fromQuansic(key string, rec *quansic.Recording) *domain.IdentifierRecord {
	var contributors domain.Contributors
	for _, p := range rec.Composers {
		contributors = append(contributors, domain.Contributor{Name: p.Name, Role: p.Role, IPI: p.IPI})
	}
	title := rec.WorkTitle
	if title == "" {
		title = rec.Title
	}
	var raw any = rec
	if len(rec.Raw) > 0 {
		raw = rec.Raw
	}
	return found(key, rec.ISWC, constants.SourceQuansic, title, contributors,
		domain.JSONMap{"recording_title": rec.Title}, raw)
}

func fromBMI(key string, w *bmi.Work) *domain.IdentifierRecord {
	var contributors domain.Contributors
	for _, name := range w.Writers {
		contributors = append(contributors, domain.Contributor{Name: name, Role: "writer"})
	}
	return found(key, w.ISWC, constants.SourceBMI, w.Title, contributors,
		domain.JSONMap{"work_id": w.WorkID, "performers": w.Performers}, w)
}

func fromMLC(key string, m *mlc.Match) *domain.IdentifierRecord {
	var contributors domain.Contributors
	for _, wr := range m.Work.Writers {
		contributors = append(contributors, domain.Contributor{Name: wr.Name(), Role: "writer", IPI: wr.IPI})
	}
	return found(key, m.Work.ISWC, constants.SourceMLC, m.Work.Title, contributors, domain.JSONMap{
		"mlc_song_code":      m.Work.SongCode,
		"works_scanned":      m.WorksScanned,
		"recordings_scanned": m.RecordingsScanned,
	}, m)
}

func fromQuansicWork(key, iswc string, w *quansic.Work) *domain.IdentifierRecord {
	if w == nil {
		return &domain.IdentifierRecord{
			NaturalKey: key,
			KeyType:    domain.KeyTypeISWC,
			Source:     constants.SourceQuansic,
			NotFound:   true,
			Metadata:   domain.JSONMap{},
		}
	}
	var contributors domain.Contributors
	for _, p := range w.Contributors {
		contributors = append(contributors, domain.Contributor{Name: p.Name, Role: p.Role, IPI: p.IPI})
	}
	var raw any = w
	if len(w.Raw) > 0 {
		raw = w.Raw
	}
	rec := found(key, iswc, constants.SourceQuansic, w.Title, contributors,
		domain.JSONMap{"recording_count": w.RecordingCount}, raw)
	rec.KeyType = domain.KeyTypeISWC
	return rec
}
