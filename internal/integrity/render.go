package integrity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Render writes the report as tables. Severities are coloured when w is a
// terminal.
func Render(w io.Writer, r *Report) error {
	colorize := shouldColorize(w)
	var b strings.Builder

	fmt.Fprintf(&b, "Integrity report %s (%d tracks)\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"), r.Total)

	rows := make([][]string, 0, len(r.Funnel))
	for _, s := range r.Funnel {
		rows = append(rows, []string{string(s.Stage), strconv.Itoa(s.Count)})
	}
	b.WriteString(renderTable("Stage funnel", []string{"Stage", "Tracks"}, rows, 2))

	rows = rows[:0]
	for _, v := range r.Views {
		rows = append(rows, []string{v.Step, strconv.Itoa(v.Upstream), strconv.Itoa(v.Eligible)})
	}
	b.WriteString(renderTable("Eligible views", []string{"Step", "Upstream", "Eligible"}, rows, 2))

	rows = rows[:0]
	names := make([]string, 0, len(r.Tables))
	for name := range r.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(r.Tables[name])})
	}
	b.WriteString(renderTable("Tables", []string{"Table", "Rows"}, rows, 2))

	if len(r.Outcomes) > 0 {
		rows = rows[:0]
		for _, o := range r.Outcomes {
			rows = append(rows, []string{string(o.Stage), string(o.Outcome), strconv.Itoa(o.Count)})
		}
		b.WriteString(renderTable("Outcomes (24h)", []string{"Stage", "Outcome", "Count"}, rows, 3))
	}

	if len(r.Anomalies) == 0 {
		b.WriteString("No anomalies.\n\n")
	} else {
		rows = rows[:0]
		for _, a := range r.Anomalies {
			rows = append(rows, []string{paint(string(a.Severity), a.Severity, colorize), a.Code, strconv.Itoa(a.Count), a.Message, strings.Join(a.Samples, ", ")})
		}
		b.WriteString(renderTable("Anomalies", []string{"Severity", "Code", "Count", "Detail", "Samples"}, rows, 3))
	}

	if len(r.Blocked) == 0 {
		b.WriteString("No blocked tracks.\n")
	} else {
		rows = rows[:0]
		for _, bl := range r.Blocked {
			rows = append(rows, []string{string(bl.Stage), bl.Reason, strconv.Itoa(bl.Count), strings.Join(bl.Samples, ", ")})
		}
		b.WriteString(renderTable("Blocked tracks", []string{"Stage", "First unmet precondition", "Count", "Samples"}, rows, 3))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderTable renders a titled table; the column numbered rightCol (1-based)
// is right aligned.
func renderTable(title string, headers []string, rows [][]string, rightCol int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)

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
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: rightCol, Align: text.AlignRight, AlignHeader: text.AlignLeft}})
	return tw.Render() + "\n\n"
}

func paint(s string, sev Severity, colorize bool) string {
	if !colorize {
		return s
	}
	switch sev {
	case SeverityCritical:
		return text.FgRed.Sprint(s)
	case SeverityWarning:
		return text.FgYellow.Sprint(s)
	default:
		return text.FgBlue.Sprint(s)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
