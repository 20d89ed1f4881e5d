package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/cesargomez89/songpipe/internal/constants"
)

// Config holds all application configuration. Values come from defaults, an
// optional TOML file, then environment variables, in increasing priority.
type Config struct {
	DBDriver    string `toml:"db_driver"`
	DBPath      string `toml:"db_path"`
	DatabaseURL string `toml:"database_url"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	LockPath   string `toml:"lock_path"`
	StatusAddr string `toml:"status_addr"`

	BatchLimit        int `toml:"batch_limit"`
	CycleDelaySeconds int `toml:"cycle_delay_seconds"`
	LeaseTTLSeconds   int `toml:"lease_ttl_seconds"`

	MusicBrainzURL string `toml:"musicbrainz_url"`
	LRCLibURL      string `toml:"lrclib_url"`
	QuansicURL     string `toml:"quansic_url"`
	BMIURL         string `toml:"bmi_url"`
	MLCURL         string `toml:"mlc_url"`

	MaxWorks             int `toml:"max_works"`
	MaxRecordingsPerWork int `toml:"max_recordings_per_work"`

	AlignmentURL    string `toml:"alignment_url"`
	AlignmentAPIKey string `toml:"alignment_api_key"`

	GeminiAPIKey    string   `toml:"gemini_api_key"`
	GeminiModel     string   `toml:"gemini_model"`
	SourceLanguage  string   `toml:"source_language"`
	TargetLanguages []string `toml:"target_languages"`

	AudioDir    string `toml:"audio_dir"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Bucket    string `toml:"s3_bucket"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBDriver:             constants.DefaultDBDriver,
		DBPath:               constants.DefaultDBPath,
		LogLevel:             "info",
		LogFormat:            "text",
		StatusAddr:           constants.DefaultStatusAddr,
		BatchLimit:           constants.DefaultBatchLimit,
		CycleDelaySeconds:    int(constants.DefaultCycleDelay / time.Second),
		LeaseTTLSeconds:      int(constants.DefaultLeaseTTL / time.Second),
		MusicBrainzURL:       constants.DefaultMusicBrainz,
		LRCLibURL:            constants.DefaultLRCLibURL,
		QuansicURL:           constants.DefaultQuansicURL,
		BMIURL:               constants.DefaultBMIURL,
		MLCURL:               constants.DefaultMLCURL,
		MaxWorks:             constants.MaxWorksPerSearch,
		MaxRecordingsPerWork: constants.MaxRecordingsPerWork,
		AlignmentURL:         constants.DefaultAlignmentURL,
		GeminiModel:          constants.DefaultGeminiModel,
		SourceLanguage:       constants.DefaultSourceLang,
		TargetLanguages:      splitList(constants.DefaultTargetLangs),
		AudioDir:             constants.DefaultAudioDir,
		S3Bucket:             constants.DefaultAudioBucket,
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalizeLanguages()
	return cfg, nil
}

// normalizeLanguages lowercases the language codes and drops duplicate
// targets, keeping the first occurrence.
func (c *Config) normalizeLanguages() {
	c.SourceLanguage = strings.ToLower(strings.TrimSpace(c.SourceLanguage))
	c.TargetLanguages = splitList(strings.Join(c.TargetLanguages, ","))
}

// distinctTargets counts the target languages that differ from the source.
func (c *Config) distinctTargets() int {
	source := strings.ToLower(strings.TrimSpace(c.SourceLanguage))
	seen := map[string]bool{}
	for _, lang := range splitList(strings.Join(c.TargetLanguages, ",")) {
		if lang != source {
			seen[lang] = true
		}
	}
	return len(seen)
}

func (c *Config) applyEnv() {
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LockPath = getEnv("LOCK_PATH", c.LockPath)
	c.StatusAddr = getEnv("STATUS_ADDR", c.StatusAddr)
	c.BatchLimit = getEnvInt("BATCH_LIMIT", c.BatchLimit)
	c.CycleDelaySeconds = getEnvInt("CYCLE_DELAY_SECONDS", c.CycleDelaySeconds)
	c.LeaseTTLSeconds = getEnvInt("LEASE_TTL_SECONDS", c.LeaseTTLSeconds)
	c.MusicBrainzURL = getEnv("MUSICBRAINZ_URL", c.MusicBrainzURL)
	c.LRCLibURL = getEnv("LRCLIB_URL", c.LRCLibURL)
	c.QuansicURL = getEnv("QUANSIC_URL", c.QuansicURL)
	c.BMIURL = getEnv("BMI_URL", c.BMIURL)
	c.MLCURL = getEnv("MLC_URL", c.MLCURL)
	c.MaxWorks = getEnvInt("MLC_MAX_WORKS", c.MaxWorks)
	c.MaxRecordingsPerWork = getEnvInt("MLC_MAX_RECORDINGS", c.MaxRecordingsPerWork)
	c.AlignmentURL = getEnv("ALIGNMENT_URL", c.AlignmentURL)
	c.AlignmentAPIKey = getEnv("ELEVENLABS_API_KEY", c.AlignmentAPIKey)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.SourceLanguage = getEnv("SOURCE_LANGUAGE", c.SourceLanguage)
	if v, ok := os.LookupEnv("TARGET_LANGUAGES"); ok {
		c.TargetLanguages = splitList(v)
	}
	c.AudioDir = getEnv("AUDIO_DIR", c.AudioDir)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = getEnv("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = getEnv("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Bucket = getEnv("S3_BUCKET", c.S3Bucket)
	c.S3UseSSL = getEnvBool("S3_USE_SSL", c.S3UseSSL)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
}

func (c *Config) CycleDelay() time.Duration {
	return time.Duration(c.CycleDelaySeconds) * time.Second
}

func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			errors = append(errors, "DB_PATH cannot be empty when DB_DRIVER is sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL cannot be empty when DB_DRIVER is postgres")
		}
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be one of: sqlite, postgres, got: %s", c.DBDriver))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if c.BatchLimit < 1 {
		errors = append(errors, fmt.Sprintf("BATCH_LIMIT must be positive, got: %d", c.BatchLimit))
	}
	if c.CycleDelaySeconds < 0 {
		errors = append(errors, fmt.Sprintf("CYCLE_DELAY_SECONDS cannot be negative, got: %d", c.CycleDelaySeconds))
	}
	if c.LeaseTTLSeconds < 1 {
		errors = append(errors, fmt.Sprintf("LEASE_TTL_SECONDS must be positive, got: %d", c.LeaseTTLSeconds))
	}
	if c.MaxWorks < 1 || c.MaxRecordingsPerWork < 1 {
		errors = append(errors, "MLC_MAX_WORKS and MLC_MAX_RECORDINGS must be positive")
	}

	for name, raw := range map[string]string{
		"MUSICBRAINZ_URL": c.MusicBrainzURL,
		"LRCLIB_URL":      c.LRCLibURL,
		"QUANSIC_URL":     c.QuansicURL,
		"BMI_URL":         c.BMIURL,
		"MLC_URL":         c.MLCURL,
		"ALIGNMENT_URL":   c.AlignmentURL,
	} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", name, raw))
		}
	}

	if c.SourceLanguage == "" {
		errors = append(errors, "SOURCE_LANGUAGE cannot be empty")
	}
	if n := c.distinctTargets(); n < constants.TranslationQuorum {
		errors = append(errors, fmt.Sprintf("TARGET_LANGUAGES must list at least %d distinct languages other than SOURCE_LANGUAGE, got: %d", constants.TranslationQuorum, n))
	}

	if c.S3Endpoint == "" && c.AudioDir == "" {
		errors = append(errors, "AUDIO_DIR cannot be empty when S3_ENDPOINT is not set")
	}
	if c.S3Endpoint != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		errors = append(errors, "S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" && !seen[part] {
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
