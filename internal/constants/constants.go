// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultDBDriver     = "sqlite"
	DefaultDBPath       = "songpipe.db"
	DefaultBatchLimit   = 25
	DefaultCycleDelay   = 5 * time.Minute
	DefaultLeaseTTL     = 15 * time.Minute
	DefaultHTTPTimeout  = 30 * time.Second
	AudioHTTPTimeout    = 5 * time.Minute
	DefaultRetryCount   = 3
	DefaultRetryBase    = 1 * time.Second
	DefaultCacheTTL     = 12 * time.Hour
	DefaultStatusAddr   = ""
	DefaultSourceLang   = "en"
	DefaultTargetLangs  = "es,fr,de"
	DefaultAudioBucket  = "songpipe-audio"
	DefaultAudioDir     = "audio"
	DefaultGeminiModel  = "gemini-1.5-flash"
	DefaultMusicBrainz  = "https://musicbrainz.org/ws/2"
	DefaultLRCLibURL    = "https://lrclib.net"
	DefaultQuansicURL   = "http://127.0.0.1:3000"
	DefaultBMIURL       = "https://repertoire.bmi.com"
	DefaultMLCURL       = "https://api.ptl.themlc.com"
	DefaultAlignmentURL = "https://api.elevenlabs.io"
)

// Pipeline limits
const (
	MaxRetries                = 3
	TranslationQuorum         = 3
	MaxWorksPerSearch         = 30
	MaxRecordingsPerWork      = 300
	RecordingsPageSize        = 50
	MaxAudioBytes       int64 = 200 << 20
)

// Provider rate limits, requests per second
const (
	QuansicRPS     = 2.0
	BMIRPS         = 0.5
	MLCRPS         = 1.0
	MusicBrainzRPS = 0.95
	LRCLibRPS      = 2.0
	AlignmentRPS   = 0.5
	GeminiRPS      = 1.0
	DownloadRPS    = 2.0
)

// Providers, as recorded in identifier and payload rows
const (
	SourceQuansic     = "quansic"
	SourceBMI         = "bmi"
	SourceMLC         = "mlc"
	SourceMusicBrainz = "musicbrainz"
	SourceLRCLib      = "lrclib"
	SourceEmbedded    = "embedded"
	SourceElevenLabs  = "elevenlabs"
	SourceGemini      = "gemini"
)

// Pipeline steps, in DAG order
const (
	StepResolveMetadata = "resolve-metadata"
	StepResolveISWC     = "resolve-iswc"
	StepDownloadAudio   = "download-audio"
	StepAlignLyrics     = "align-lyrics"
	StepTranslateLyrics = "translate-lyrics"
)

// Database
const (
	TracksTable        = "track_pipeline_state"
	IdentifierTable    = "external_identifier_cache"
	AlignmentsTable    = "alignment_records"
	TranslationsTable  = "translation_records"
	ProcessingLogTable = "processing_log"
	CacheTable         = "http_cache"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtM4A  = ".m4a"
	ExtWAV  = ".wav"
)

// MIME Types
const (
	MimeTypeFLAC = "audio/flac"
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeMP4  = "audio/mp4"
	MimeTypeWAV  = "audio/wav"
	MimeTypeJSON = "application/json"
)
