// Package integrity produces a read-only health report of the pipeline
// tables: stage funnel, eligible-set sizes, anomalies and blocked tracks.
package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/pipeline"
	"github.com/cesargomez89/songpipe/internal/store"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type StageCount struct {
	Stage domain.Stage `json:"stage"`
	Count int          `json:"count"`
}

// View is an eligible set: the tracks a step would consider, and how many
// tracks sit at its input stages.
type View struct {
	Step     string `json:"step"`
	Eligible int    `json:"eligible"`
	Upstream int    `json:"upstream"`
}

type Anomaly struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Count    int      `json:"count"`
	Samples  []string `json:"samples,omitempty"`
}

// Blocker groups open tracks by the first precondition they fail.
type Blocker struct {
	Stage   domain.Stage `json:"stage"`
	Reason  string       `json:"reason"`
	Count   int          `json:"count"`
	Samples []string     `json:"samples,omitempty"`
}

type Report struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Total       int                  `json:"total"`
	Funnel      []StageCount         `json:"funnel"`
	Views       []View               `json:"views"`
	Tables      map[string]int       `json:"tables"`
	Outcomes    []store.OutcomeCount `json:"outcomes_24h"`
	Anomalies   []Anomaly            `json:"anomalies"`
	Blocked     []Blocker            `json:"blocked"`
}

// Critical reports whether any anomaly is critical.
func (r *Report) Critical() bool {
	for _, a := range r.Anomalies {
		if a.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

type Checker struct {
	db     *store.DB
	quorum int
}

func NewChecker(db *store.DB, quorum int) *Checker {
	if quorum <= 0 {
		quorum = constants.TranslationQuorum
	}
	return &Checker{db: db, quorum: quorum}
}

type findingCheck struct {
	code     string
	severity Severity
	message  string
	run      func(ctx context.Context) (store.Finding, error)
}

func (c *Checker) findingChecks() []findingCheck {
	return []findingCheck{
		{"alignment_missing", SeverityCritical, "tracks past alignment without an alignment record", c.db.MissingAlignments},
		{"translation_quorum_missing", SeverityCritical, fmt.Sprintf("translation-ready tracks with fewer than %d languages", c.quorum),
			func(ctx context.Context) (store.Finding, error) { return c.db.BelowQuorum(ctx, c.quorum) }},
		{"iswc_found_without_iswc", SeverityCritical, "tracks at iswc_found without an ISWC", c.db.ISWCFoundWithoutISWC},
		{"line_count_mismatch", SeverityCritical, "translations whose line count differs from the alignment", c.db.LineCountMismatches},
		{"iswc_not_cached", SeverityWarning, "track ISWCs missing from the identifier cache", c.db.ISWCNotCached},
		{"retry_exhausted_not_failed", SeverityWarning, "tracks with a spent retry budget not marked failed", c.db.ExhaustedNotFailed},
		{"expired_leases", SeverityInfo, "leases past expiry, left by an interrupted worker", c.db.ExpiredLeases},
	}
}

// Check builds the report. It only reads.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	r := &Report{GeneratedAt: c.db.Now()}
	pre := pipeline.Preconditions()
	checks := c.findingChecks()

	var (
		stages   map[domain.Stage]int
		eligible = make([]int, len(pre))
		findings = make([]store.Finding, len(checks))
		open     []store.OpenTrack
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stages, err = c.db.StageCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.Tables, err = c.db.TableCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		r.Outcomes, err = c.db.OutcomesSince(gctx, r.GeneratedAt.Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		open, err = c.db.OpenTracks(gctx)
		return err
	})
	for i, p := range pre {
		g.Go(func() (err error) {
			eligible[i], err = c.db.CountEligible(gctx, p.Eligible)
			if err != nil {
				return fmt.Errorf("eligible %s: %w", p.Step, err)
			}
			return nil
		})
	}
	for i, chk := range checks {
		g.Go(func() (err error) {
			findings[i], err = chk.run(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", chk.code, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range domain.Stages() {
		r.Funnel = append(r.Funnel, StageCount{Stage: s, Count: stages[s]})
		r.Total += stages[s]
	}

	r.Blocked = classify(open, pre, r.GeneratedAt)
	blockedAt := map[domain.Stage]int{}
	for _, b := range r.Blocked {
		blockedAt[b.Stage] += b.Count
	}

	for i, p := range pre {
		v := View{Step: p.Step, Eligible: eligible[i]}
		explained := 0
		for _, s := range p.Eligible.Stages {
			v.Upstream += stages[s]
			explained += blockedAt[s]
		}
		r.Views = append(r.Views, v)

		if v.Eligible == 0 && v.Upstream > 0 {
			sev := SeverityWarning
			if explained < v.Upstream {
				sev = SeverityCritical
			}
			r.Anomalies = append(r.Anomalies, Anomaly{
				Code:     "empty_eligible_view",
				Severity: sev,
				Message:  fmt.Sprintf("%s has no eligible tracks while %d sit at its input stages (%d explained by blockers)", p.Step, v.Upstream, explained),
				Count:    v.Upstream,
			})
		}
	}

	for i, chk := range checks {
		f := findings[i]
		if f.Count == 0 {
			continue
		}
		r.Anomalies = append(r.Anomalies, Anomaly{
			Code:     chk.code,
			Severity: chk.severity,
			Message:  chk.message,
			Count:    f.Count,
			Samples:  f.Samples,
		})
	}
	sort.SliceStable(r.Anomalies, func(i, j int) bool {
		return severityRank(r.Anomalies[i].Severity) < severityRank(r.Anomalies[j].Severity)
	})

	return r, nil
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

const maxSamples = 5

// classify finds, for every open track that no step can claim, the first
// precondition it fails, and groups the tracks by that reason, most
// frequent first. Leased tracks are in progress and not blocked.
func classify(open []store.OpenTrack, pre []pipeline.Precondition, now time.Time) []Blocker {
	byStage := map[domain.Stage]store.Eligibility{}
	for _, p := range pre {
		for _, s := range p.Eligible.Stages {
			byStage[s] = p.Eligible
		}
	}

	groups := map[string]*Blocker{}
	for i := range open {
		t := &open[i]
		if t.LeaseActive(now) {
			continue
		}
		reason := blockedBy(t, byStage)
		if reason == "" {
			continue
		}
		key := string(t.Stage) + "\x00" + reason
		b, ok := groups[key]
		if !ok {
			b = &Blocker{Stage: t.Stage, Reason: reason}
			groups[key] = b
		}
		b.Count++
		if len(b.Samples) < maxSamples {
			b.Samples = append(b.Samples, t.TrackID)
		}
	}

	out := make([]Blocker, 0, len(groups))
	for _, b := range groups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Stage != out[j].Stage {
			return out[i].Stage.Rank() < out[j].Stage.Rank()
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func blockedBy(t *store.OpenTrack, byStage map[domain.Stage]store.Eligibility) string {
	e, ok := byStage[t.Stage]
	if !ok {
		return "no step consumes this stage"
	}
	switch {
	case t.RetryCount >= constants.MaxRetries:
		return "retry budget exhausted"
	case e.RequireISRC && !t.HasISRC:
		return "missing ISRC"
	case e.RequireSourceAudio && !t.HasSourceAudio:
		return "missing source audio URL"
	case e.RequireAudio && !t.HasAudio:
		return "missing stored audio"
	case e.RequireLyrics && !t.HasLyrics:
		return "missing lyrics"
	case e.RequireAlignment && !t.HasAlignment:
		return "missing alignment record"
	}
	return ""
}
