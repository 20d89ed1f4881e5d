package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/pipeline"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable renders rows under headers; columns listed in right are right
// aligned (0-based).
func renderTable(headers []string, rows [][]string, right ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(right))
	for _, i := range right {
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func printCycle(w io.Writer, c *pipeline.Cycle) {
	rows := make([][]string, 0, len(c.Steps))
	for _, s := range c.Steps {
		rows = append(rows, []string{
			s.Step,
			strconv.Itoa(s.Claimed),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
		})
	}
	fmt.Fprintf(w, "Run %s (%s, %d interrupted tracks failed)\n", c.RunID, c.FinishedAt.Sub(c.StartedAt).Round(time.Millisecond), c.Swept)
	fmt.Fprintln(w, renderTable([]string{"Step", "Claimed", "Succeeded", "Failed", "Skipped"}, rows, 1, 2, 3, 4))
}

func printTrack(w io.Writer, t *domain.Track) {
	rows := [][]string{
		{"Track", t.TrackID},
		{"ISRC", t.ISRC},
		{"Title", t.Title},
		{"Artist", t.Artist},
		{"Stage", string(t.Stage)},
		{"Retries", strconv.Itoa(t.RetryCount)},
		{"Manual resets", strconv.Itoa(t.ManualResetCount)},
	}
	if t.HasISWC() {
		rows = append(rows, []string{"ISWC", *t.ISWC})
	}
	if t.AudioURL != "" {
		rows = append(rows, []string{"Audio", t.AudioURL})
	}
	if t.LastErrorMessage != nil {
		stage := ""
		if t.LastErrorStage != nil {
			stage = *t.LastErrorStage + ": "
		}
		rows = append(rows, []string{"Last error", stage + *t.LastErrorMessage})
	}
	if t.LeaseOwner != nil {
		rows = append(rows, []string{"Lease", *t.LeaseOwner})
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows))
}
