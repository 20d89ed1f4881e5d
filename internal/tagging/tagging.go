// Package tagging reads lyrics embedded in downloaded audio.
package tagging

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Vorbis comment fields that carry unsynchronised lyrics, in preference
// order.
var vorbisLyricsFields = []string{"LYRICS", "UNSYNCEDLYRICS"}

// EmbeddedLyrics returns the unsynchronised lyrics stored in an MP3 (ID3v2
// USLT) or FLAC (Vorbis LYRICS) file. An empty string with a nil error means
// the file has no lyrics.
func EmbeddedLyrics(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return flacLyrics(data)
	case bytes.HasPrefix(data, []byte("ID3")):
		return mp3Lyrics(data)
	case len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio without a tag
		return "", nil
	}
	return "", ErrUnsupportedFormat
}

func flacLyrics(data []byte) (string, error) {
	f, err := flac.ParseMetadata(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse flac metadata: %w", err)
	}
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return "", fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		for _, field := range vorbisLyricsFields {
			values, err := cmt.Get(field)
			if err != nil {
				return "", err
			}
			for _, v := range values {
				if strings.TrimSpace(v) != "" {
					return v, nil
				}
			}
		}
	}
	return "", nil
}

func mp3Lyrics(data []byte) (string, error) {
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return "", fmt.Errorf("failed to parse id3 tag: %w", err)
	}
	defer func() {
		_ = tag.Close()
	}()

	var synced string
	for _, f := range tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription")) {
		uslt, ok := f.(id3v2.UnsynchronisedLyricsFrame)
		if !ok || strings.TrimSpace(uslt.Lyrics) == "" {
			continue
		}
		// LRC-formatted frames are only a fallback.
		if uslt.ContentDescriptor == "LRC" {
			if synced == "" {
				synced = uslt.Lyrics
			}
			continue
		}
		return uslt.Lyrics, nil
	}
	return synced, nil
}
