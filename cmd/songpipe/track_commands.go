package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/store"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		track      store.NewTrack
		lyricsFile string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a discovered track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lyricsFile != "" {
				data, err := os.ReadFile(lyricsFile)
				if err != nil {
					return fmt.Errorf("read lyrics: %w", err)
				}
				track.Lyrics = string(data)
			}
			db, err := ctx.store()
			if err != nil {
				return err
			}
			if err := db.EnqueueTrack(cmd.Context(), track); err != nil {
				return err
			}
			t, err := db.GetTrack(cmd.Context(), track.TrackID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Track %s is at %s\n", t.TrackID, t.Stage)
			return nil
		},
	}

	cmd.Flags().StringVar(&track.TrackID, "track-id", "", "Track identifier")
	cmd.Flags().StringVar(&track.ISRC, "isrc", "", "Recording ISRC")
	cmd.Flags().StringVar(&track.Title, "title", "", "Track title")
	cmd.Flags().StringVar(&track.Artist, "artist", "", "Performing artist")
	cmd.Flags().IntVar(&track.DurationMS, "duration-ms", 0, "Duration in milliseconds")
	cmd.Flags().StringVar(&track.SourceAudioURL, "audio-url", "", "Where the audio can be downloaded")
	cmd.Flags().StringVar(&lyricsFile, "lyrics-file", "", "Plain-text lyrics file")
	_ = cmd.MarkFlagRequired("track-id")
	return cmd
}

func newRequeueCommand(ctx *commandContext) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "requeue <track-id>",
		Short: "Reset a track's retry budget and return it to a stage",
		Long:  "Without --stage the track returns to the stage it last failed at.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var to domain.Stage
			if strings.TrimSpace(stage) != "" {
				s, err := domain.ParseStage(stage)
				if err != nil {
					return err
				}
				to = s
			}
			db, err := ctx.store()
			if err != nil {
				return err
			}
			t, err := db.Requeue(cmd.Context(), args[0], to, uuid.NewString())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Track %s requeued at %s (reset %d)\n", t.TrackID, t.Stage, t.ManualResetCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Stage to return the track to")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <track-id>",
		Short: "Show a track and its processing log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.store()
			if err != nil {
				return err
			}
			t, err := db.GetTrack(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := db.TrackLog(cmd.Context(), t.TrackID)
			if err != nil {
				return err
			}
			translations, err := db.ListTranslations(cmd.Context(), t.TrackID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, struct {
					Track        *domain.Track         `json:"track"`
					Translations []*domain.Translation `json:"translations"`
					Log          []*domain.LogEntry    `json:"log"`
				}{t, translations, entries})
			}

			out := cmd.OutOrStdout()
			printTrack(out, t)
			if len(translations) > 0 {
				rows := make([][]string, 0, len(translations))
				for _, tr := range translations {
					rows = append(rows, []string{
						tr.LanguageCode,
						strconv.Itoa(tr.LineCount),
						strconv.FormatFloat(tr.ConfidenceScore, 'f', 2, 64),
						tr.Provider,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Language", "Lines", "Confidence", "Provider"}, rows, 1, 2))
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No processing log entries.")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					string(e.Stage),
					string(e.Outcome),
					e.Message,
					strconv.FormatInt(e.ID, 10),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Time", "Stage", "Outcome", "Message", "ID"}, rows, 4))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.store()
			if err != nil {
				return err
			}
			counts, err := db.TableCounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s, %d tables)\n", db.Dialect(), len(counts))
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		stage  string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks, optionally at one stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var at domain.Stage
			if strings.TrimSpace(stage) != "" {
				s, err := domain.ParseStage(stage)
				if err != nil {
					return err
				}
				at = s
			}
			db, err := ctx.store()
			if err != nil {
				return err
			}
			tracks, err := db.ListTracks(cmd.Context(), at, limit)
			if err != nil {
				return err
			}
			if asJSON {
				if tracks == nil {
					tracks = []*domain.Track{}
				}
				return writeJSON(cmd, tracks)
			}

			rows := make([][]string, 0, len(tracks))
			for _, t := range tracks {
				lastErr := ""
				if t.LastErrorMessage != nil {
					lastErr = *t.LastErrorMessage
				}
				rows = append(rows, []string{t.TrackID, t.ISRC, t.Title, string(t.Stage), strconv.Itoa(t.RetryCount), lastErr})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Track", "ISRC", "Title", "Stage", "Retries", "Last error"}, rows, 4))
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Only tracks at this stage")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum tracks listed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON")
	return cmd
}
