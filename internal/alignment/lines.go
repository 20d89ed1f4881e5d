package alignment

import (
	"strings"
	"unicode"

	"github.com/cesargomez89/songpipe/internal/domain"
)

// letters counts the letters and digits of s, ignoring case, spacing and
// punctuation.
func letters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			n++
		}
	}
	return n
}

// MapLines assigns aligned words to lyric lines in order. Words are
// consumed until a line's letter count is covered, so the mapping survives
// the provider splitting or merging tokens differently from the lyrics.
// Lines left without words inherit the previous line's end time; leftover
// words go to the last line.
func MapLines(lines []string, words []domain.AlignedWord) []domain.AlignedLine {
	var spoken []domain.AlignedWord
	for _, w := range words {
		if letters(w.Text) > 0 {
			spoken = append(spoken, w)
		}
	}

	out := make([]domain.AlignedLine, len(lines))
	next := 0
	lastEnd := 0.0
	for i, line := range lines {
		al := domain.AlignedLine{Index: i, Text: strings.TrimSpace(line), Start: lastEnd, End: lastEnd}
		need := letters(line)
		last := i == len(lines)-1
		for got := 0; next < len(spoken) && (got < need || last); next++ {
			w := spoken[next]
			if al.WordCount == 0 {
				al.Start = w.Start
			}
			al.End = w.End
			al.WordCount++
			got += letters(w.Text)
		}
		lastEnd = al.End
		out[i] = al
	}
	return out
}
