package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/songpipe/internal/domain"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	cleanup := func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	}
	return db, cleanup
}

func seedTrack(t *testing.T, db *DB, id string, stage domain.Stage, retries int) {
	t.Helper()
	ctx := context.Background()
	if err := db.EnqueueTrack(ctx, NewTrack{
		TrackID:        id,
		ISRC:           "usrc1190" + id,
		Title:          "Title " + id,
		Artist:         "Artist",
		SourceAudioURL: "https://cdn.example.com/" + id + ".mp3",
		Lyrics:         "line one\nline two",
	}); err != nil {
		t.Fatalf("EnqueueTrack failed: %v", err)
	}
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET stage = ?, retry_count = ? WHERE track_id = ?`), stage, retries, id); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}
}

func claimOne(t *testing.T, db *DB, id string, stage domain.Stage) {
	t.Helper()
	claimed, err := db.ClaimEligible(context.Background(), Eligibility{Stages: []domain.Stage{stage}}, 10, "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("ClaimEligible failed: %v", err)
	}
	for _, c := range claimed {
		if c.TrackID == id {
			return
		}
	}
	t.Fatalf("Expected %s to be claimed, got %d tracks", id, len(claimed))
}

func TestDB_EnqueueAndGetTrack(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageDiscovered, 0)

	track, err := db.GetTrack(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.ISRC != "USRC1190T1" {
		t.Errorf("Expected upper-cased ISRC, got %s", track.ISRC)
	}
	if track.Stage != domain.StageDiscovered {
		t.Errorf("Expected stage %s, got %s", domain.StageDiscovered, track.Stage)
	}

	// Re-enqueue keeps the stage and existing fields
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET stage = ? WHERE track_id = ?`), domain.StageAudioDownloaded, "t1"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := db.EnqueueTrack(ctx, NewTrack{TrackID: "t1", Title: "Other"}); err != nil {
		t.Fatalf("EnqueueTrack failed: %v", err)
	}
	track, _ = db.GetTrack(ctx, "t1")
	if track.Stage != domain.StageAudioDownloaded || track.Title != "Title t1" {
		t.Errorf("Re-enqueue changed track: stage=%s title=%s", track.Stage, track.Title)
	}

	if _, err := db.GetTrack(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDB_FindEligible(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new", "spent"} {
		seedTrack(t, db, id, domain.StageAudioDownloaded, 0)
		if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET updated_at = ? WHERE track_id = ?`), base.Add(time.Duration(i)*time.Hour), id); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET retry_count = 3 WHERE track_id = ?`), "spent"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET lyrics = '' WHERE track_id = ?`), "mid"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	tracks, err := db.FindEligible(ctx, Eligibility{Stages: []domain.Stage{domain.StageAudioDownloaded}}, 10)
	if err != nil {
		t.Fatalf("FindEligible failed: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("Expected 3 eligible tracks, got %d", len(tracks))
	}
	if tracks[0].TrackID != "old" || tracks[2].TrackID != "new" {
		t.Errorf("Expected oldest first, got %s, %s, %s", tracks[0].TrackID, tracks[1].TrackID, tracks[2].TrackID)
	}

	tracks, err = db.FindEligible(ctx, Eligibility{Stages: []domain.Stage{domain.StageAudioDownloaded}, RequireLyrics: true}, 10)
	if err != nil {
		t.Fatalf("FindEligible failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Errorf("Expected 2 tracks with lyrics, got %d", len(tracks))
	}

	n, err := db.CountEligible(ctx, Eligibility{Stages: []domain.Stage{domain.StageAudioDownloaded}})
	if err != nil {
		t.Fatalf("CountEligible failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected count 3, got %d", n)
	}

	if _, err := db.FindEligible(ctx, Eligibility{}, 10); err == nil {
		t.Error("Expected error for empty eligibility")
	}
}

func TestDB_BlankLyricsAreNotEligible(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := db.EnqueueTrack(ctx, NewTrack{TrackID: "blank", Title: "Blank", Lyrics: "  \n\t \n"}); err != nil {
		t.Fatalf("EnqueueTrack failed: %v", err)
	}
	seedTrack(t, db, "spaces", domain.StageAudioDownloaded, 0)
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET stage = ?, audio_url = ? WHERE track_id = ?`),
		domain.StageAudioDownloaded, "file:///blank.mp3", "blank"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := db.Exec(db.Rebind(`UPDATE track_pipeline_state SET lyrics = '   ' WHERE track_id = ?`), "spaces"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	track, err := db.GetTrack(ctx, "blank")
	if err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if track.Lyrics != "" {
		t.Errorf("Expected whitespace-only lyrics to be stored empty, got %q", track.Lyrics)
	}

	tracks, err := db.FindEligible(ctx, Eligibility{Stages: []domain.Stage{domain.StageAudioDownloaded}, RequireLyrics: true}, 10)
	if err != nil {
		t.Fatalf("FindEligible failed: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Expected no tracks with lyrics, got %d", len(tracks))
	}

	// Blank lyrics are filled by a later enqueue
	if err := db.EnqueueTrack(ctx, NewTrack{TrackID: "spaces", Lyrics: "line one"}); err != nil {
		t.Fatalf("EnqueueTrack failed: %v", err)
	}
	tracks, err = db.FindEligible(ctx, Eligibility{Stages: []domain.Stage{domain.StageAudioDownloaded}, RequireLyrics: true}, 10)
	if err != nil {
		t.Fatalf("FindEligible failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].TrackID != "spaces" {
		t.Errorf("Expected spaces to become eligible, got %d tracks", len(tracks))
	}
}

func TestDB_ClaimIsExclusive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return now })

	seedTrack(t, db, "a", domain.StageDiscovered, 0)
	seedTrack(t, db, "b", domain.StageDiscovered, 0)
	e := Eligibility{Stages: []domain.Stage{domain.StageDiscovered}}

	first, err := db.ClaimEligible(ctx, e, 10, "worker-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("ClaimEligible failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 claimed, got %d", len(first))
	}

	second, err := db.ClaimEligible(ctx, e, 10, "worker-2", 10*time.Minute)
	if err != nil {
		t.Fatalf("ClaimEligible failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("Expected no tracks for second worker, got %d", len(second))
	}

	// Lease expiry hands tracks to another worker
	now = now.Add(11 * time.Minute)
	third, err := db.ClaimEligible(ctx, e, 1, "worker-2", 10*time.Minute)
	if err != nil {
		t.Fatalf("ClaimEligible failed: %v", err)
	}
	if len(third) != 1 || *third[0].LeaseOwner != "worker-2" {
		t.Errorf("Expected worker-2 to take over one expired lease, got %+v", third)
	}

	if _, err := db.MarkAttempting(ctx, third[0].TrackID, "worker-1"); !errors.Is(err, ErrLeaseLost) {
		t.Errorf("Expected ErrLeaseLost for previous owner, got %v", err)
	}
}

func TestDB_MarkSuccess(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageMetadataResolved, 0)
	claimOne(t, db, "t1", domain.StageMetadataResolved)

	attempted, err := db.MarkAttempting(ctx, "t1", "worker-a")
	if err != nil {
		t.Fatalf("MarkAttempting failed: %v", err)
	}
	if attempted.RetryCount != 1 || attempted.LastAttemptedAt == nil {
		t.Errorf("Expected attempt recorded, got retry=%d at=%v", attempted.RetryCount, attempted.LastAttemptedAt)
	}

	iswc := "T-070.000.001-3"
	err = db.MarkSuccess(ctx, Success{
		TrackID: "t1",
		Owner:   "worker-a",
		RunID:   "run-1",
		From:    domain.StageMetadataResolved,
		Next:    domain.StageISWCFound,
		Payload: &domain.Payload{
			Identifier: &domain.IdentifierRecord{
				NaturalKey:         IdentifierKey("USRC1190T1"),
				ResolvedIdentifier: &iswc,
				Source:             "mlc",
				Title:              "Title t1",
				Contributors:       domain.Contributors{{Name: "Writer", Role: "composer"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}

	track, _ := db.GetTrack(ctx, "t1")
	if track.Stage != domain.StageISWCFound {
		t.Errorf("Expected stage %s, got %s", domain.StageISWCFound, track.Stage)
	}
	if !track.HasISWC() || *track.ISWC != iswc {
		t.Errorf("Expected ISWC %s on track, got %v", iswc, track.ISWC)
	}
	if track.RetryCount != 0 || track.LeaseOwner != nil {
		t.Errorf("Expected fresh budget and released lease, got retry=%d lease=%v", track.RetryCount, track.LeaseOwner)
	}

	rec, err := db.GetIdentifier(ctx, IdentifierKey("USRC1190T1"))
	if err != nil || rec == nil {
		t.Fatalf("GetIdentifier failed: %v %v", rec, err)
	}
	if rec.ISWC() != iswc || len(rec.Contributors) != 1 {
		t.Errorf("Unexpected cached record: %+v", rec)
	}

	log, _ := db.TrackLog(ctx, "t1")
	if len(log) != 1 || log[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("Expected one success log row, got %+v", log)
	}
}

func TestDB_MarkSuccessIsForwardOnlyAndAtomic(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageAlignmentComplete, 0)

	err := db.MarkSuccess(ctx, Success{
		TrackID: "t1",
		From:    domain.StageAlignmentComplete,
		Next:    domain.StageAudioDownloaded,
	})
	if !errors.Is(err, ErrStageConflict) {
		t.Errorf("Expected ErrStageConflict for backward transition, got %v", err)
	}

	// Wrong expected stage: payload must not be written either
	err = db.MarkSuccess(ctx, Success{
		TrackID: "t1",
		From:    domain.StageAudioDownloaded,
		Next:    domain.StageAlignmentComplete,
		Payload: &domain.Payload{Alignment: &domain.Alignment{
			Lines: domain.AlignedLines{{Index: 0, Text: "line one"}},
		}},
	})
	if !errors.Is(err, ErrStageConflict) {
		t.Fatalf("Expected ErrStageConflict, got %v", err)
	}
	if _, err := db.GetAlignment(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected alignment to be rolled back, got %v", err)
	}
}

func TestDB_MarkFailureRetryBound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("below budget keeps stage", func(t *testing.T) {
		seedTrack(t, db, "t1", domain.StageAudioDownloaded, 0)
		claimOne(t, db, "t1", domain.StageAudioDownloaded)
		if _, err := db.MarkAttempting(ctx, "t1", "worker-a"); err != nil {
			t.Fatalf("MarkAttempting failed: %v", err)
		}
		track, err := db.MarkFailure(ctx, Failure{TrackID: "t1", Owner: "worker-a", Stage: domain.StageAudioDownloaded, Message: "timeout"})
		if err != nil {
			t.Fatalf("MarkFailure failed: %v", err)
		}
		if track.Stage != domain.StageAudioDownloaded || track.RetryCount != 1 {
			t.Errorf("Expected stage unchanged with retry 1, got %s/%d", track.Stage, track.RetryCount)
		}
		if track.LastErrorMessage == nil || *track.LastErrorMessage != "timeout" {
			t.Errorf("Expected error message recorded, got %v", track.LastErrorMessage)
		}
	})

	t.Run("third failure is terminal", func(t *testing.T) {
		seedTrack(t, db, "t2", domain.StageAudioDownloaded, 2)
		claimOne(t, db, "t2", domain.StageAudioDownloaded)
		if _, err := db.MarkAttempting(ctx, "t2", "worker-a"); err != nil {
			t.Fatalf("MarkAttempting failed: %v", err)
		}
		track, err := db.MarkFailure(ctx, Failure{TrackID: "t2", Owner: "worker-a", RunID: "run-9", Stage: domain.StageAudioDownloaded, Message: "alignment provider 500"})
		if err != nil {
			t.Fatalf("MarkFailure failed: %v", err)
		}
		if track.Stage != domain.StageFailed {
			t.Errorf("Expected stage failed, got %s", track.Stage)
		}
		if track.RetryCount != 3 {
			t.Errorf("Expected retry_count 3, got %d", track.RetryCount)
		}
		if track.LastErrorStage == nil || *track.LastErrorStage != string(domain.StageAudioDownloaded) {
			t.Errorf("Expected last_error_stage audio_downloaded, got %v", track.LastErrorStage)
		}

		log, _ := db.TrackLog(ctx, "t2")
		if len(log) != 1 || log[0].Outcome != domain.OutcomeFailed || log[0].RunID != "run-9" {
			t.Errorf("Expected one failed log row, got %+v", log)
		}
	})
}

func TestDB_Requeue(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageAudioDownloaded, 2)
	claimOne(t, db, "t1", domain.StageAudioDownloaded)
	if _, err := db.MarkAttempting(ctx, "t1", "worker-a"); err != nil {
		t.Fatalf("MarkAttempting failed: %v", err)
	}
	if _, err := db.MarkFailure(ctx, Failure{TrackID: "t1", Owner: "worker-a", Stage: domain.StageAudioDownloaded, Message: "boom"}); err != nil {
		t.Fatalf("MarkFailure failed: %v", err)
	}

	track, err := db.Requeue(ctx, "t1", "", "op")
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	if track.Stage != domain.StageAudioDownloaded {
		t.Errorf("Expected requeue to last error stage, got %s", track.Stage)
	}
	if track.RetryCount != 0 || track.ManualResetCount != 1 {
		t.Errorf("Expected retry 0 and manual reset 1, got %d/%d", track.RetryCount, track.ManualResetCount)
	}

	if _, err := db.Requeue(ctx, "t1", domain.StageFailed, "op"); err == nil {
		t.Error("Expected error requeueing to failed")
	}

	log, _ := db.TrackLog(ctx, "t1")
	if log[len(log)-1].Outcome != domain.OutcomeRequeued {
		t.Errorf("Expected requeued log row, got %s", log[len(log)-1].Outcome)
	}
}

func TestDB_SweepInterrupted(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "stuck", domain.StageISWCFailed, 3)
	seedTrack(t, db, "fine", domain.StageISWCFailed, 1)

	found, err := db.ExhaustedNotFailed(ctx)
	if err != nil {
		t.Fatalf("ExhaustedNotFailed failed: %v", err)
	}
	if found.Count != 1 || found.Samples[0] != "stuck" {
		t.Errorf("Expected stuck track reported, got %+v", found)
	}

	n, err := db.SweepInterrupted(ctx, "run-1")
	if err != nil {
		t.Fatalf("SweepInterrupted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 swept track, got %d", n)
	}
	track, _ := db.GetTrack(ctx, "stuck")
	if track.Stage != domain.StageFailed {
		t.Errorf("Expected stuck track failed, got %s", track.Stage)
	}
}

func TestDB_ProcessingLogIsAppendOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageDiscovered, 0)
	if err := db.AppendLog(ctx, &domain.LogEntry{TrackID: "t1", Stage: domain.StageDiscovered, Outcome: domain.OutcomeSkipped, Message: "not ready"}); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	if _, err := db.Exec(`UPDATE processing_log SET message = 'edited'`); err == nil {
		t.Error("Expected update of processing_log to fail")
	}
	if _, err := db.Exec(`DELETE FROM processing_log`); err == nil {
		t.Error("Expected delete from processing_log to fail")
	}
}

func TestDB_Identifiers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rec, err := db.GetIdentifier(ctx, IdentifierKey("NOPE"))
	if err != nil || rec != nil {
		t.Fatalf("Expected nil miss, got %v %v", rec, err)
	}

	notFound := &domain.IdentifierRecord{NaturalKey: IdentifierKey("GBAYE0000001"), NotFound: true, RawPayload: domain.RawJSON(`{"success":false}`)}
	if err := db.PutIdentifier(ctx, notFound); err != nil {
		t.Fatalf("PutIdentifier failed: %v", err)
	}
	rec, err = db.GetIdentifier(ctx, IdentifierKey("GBAYE0000001"))
	if err != nil || rec == nil {
		t.Fatalf("GetIdentifier failed: %v %v", rec, err)
	}
	if !rec.NotFound || rec.ISWC() != "" || string(rec.RawPayload) != `{"success":false}` {
		t.Errorf("Unexpected record: %+v", rec)
	}

	degraded := &domain.IdentifierRecord{NaturalKey: IdentifierKey("X"), NotFound: true, Degraded: true}
	if err := db.PutIdentifier(ctx, degraded); err == nil {
		t.Error("Expected degraded record to be refused")
	}
}

func TestDB_Translations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "t1", domain.StageAlignmentComplete, 0)
	for _, lang := range []string{"es", "fr"} {
		if err := db.SaveTranslation(ctx, &domain.Translation{TrackID: "t1", LanguageCode: lang, Lines: domain.StringSlice{"a", "b"}, ConfidenceScore: 1, SourceLanguage: "en"}); err != nil {
			t.Fatalf("SaveTranslation failed: %v", err)
		}
	}

	langs, err := db.TranslatedLanguages(ctx, "t1")
	if err != nil {
		t.Fatalf("TranslatedLanguages failed: %v", err)
	}
	if !langs["es"] || !langs["fr"] || langs["de"] {
		t.Errorf("Unexpected languages: %v", langs)
	}

	bad := &domain.Translation{TrackID: "t1", LanguageCode: "de", Lines: domain.StringSlice{"x"}, ConfidenceScore: 1.5}
	if err := db.SaveTranslation(ctx, bad); !errors.Is(err, ErrConstraint) {
		t.Errorf("Expected ErrConstraint for out-of-range confidence, got %v", err)
	}

	list, _ := db.ListTranslations(ctx, "t1")
	if len(list) != 2 || list[0].LineCount != 2 {
		t.Errorf("Unexpected translations: %+v", list)
	}
}

func TestDB_Cache(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	db.SetClock(func() time.Time { return now })

	if err := db.SetCache("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}
	data, err := db.GetCache("k")
	if err != nil || string(data) != "v" {
		t.Fatalf("Expected cached value, got %q %v", data, err)
	}

	now = now.Add(2 * time.Minute)
	data, err = db.GetCache("k")
	if err != nil || data != nil {
		t.Errorf("Expected expired entry to be gone, got %q %v", data, err)
	}
}

func TestDB_Findings(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seedTrack(t, db, "noalign", domain.StageAlignmentComplete, 0)
	seedTrack(t, db, "noiswc", domain.StageISWCFound, 0)
	seedTrack(t, db, "ready", domain.StageTranslationsReady, 0)

	missing, err := db.MissingAlignments(ctx)
	if err != nil {
		t.Fatalf("MissingAlignments failed: %v", err)
	}
	if missing.Count != 2 {
		t.Errorf("Expected 2 tracks without alignment, got %d", missing.Count)
	}

	quorum, err := db.BelowQuorum(ctx, 3)
	if err != nil {
		t.Fatalf("BelowQuorum failed: %v", err)
	}
	if quorum.Count != 1 || quorum.Samples[0] != "ready" {
		t.Errorf("Expected ready below quorum, got %+v", quorum)
	}

	noISWC, err := db.ISWCFoundWithoutISWC(ctx)
	if err != nil {
		t.Fatalf("ISWCFoundWithoutISWC failed: %v", err)
	}
	if noISWC.Count != 1 {
		t.Errorf("Expected 1 iswc_found without iswc, got %d", noISWC.Count)
	}

	counts, err := db.StageCounts(ctx)
	if err != nil {
		t.Fatalf("StageCounts failed: %v", err)
	}
	if counts[domain.StageAlignmentComplete] != 1 || counts[domain.StageISWCFound] != 1 {
		t.Errorf("Unexpected stage counts: %v", counts)
	}

	open, err := db.OpenTracks(ctx)
	if err != nil {
		t.Fatalf("OpenTracks failed: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("Expected 2 open tracks, got %d", len(open))
	}
	for _, o := range open {
		if !o.HasISRC || !o.HasLyrics || o.HasAlignment {
			t.Errorf("Unexpected flags for %s: %+v", o.TrackID, o)
		}
	}
}
