package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cesargomez89/songpipe/internal/alignment"
	"github.com/cesargomez89/songpipe/internal/bmi"
	"github.com/cesargomez89/songpipe/internal/cache"
	"github.com/cesargomez89/songpipe/internal/config"
	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/lyrics"
	"github.com/cesargomez89/songpipe/internal/mlc"
	"github.com/cesargomez89/songpipe/internal/musicbrainz"
	"github.com/cesargomez89/songpipe/internal/objectstore"
	"github.com/cesargomez89/songpipe/internal/pipeline"
	"github.com/cesargomez89/songpipe/internal/quansic"
	"github.com/cesargomez89/songpipe/internal/resolver"
	"github.com/cesargomez89/songpipe/internal/store"
	"github.com/cesargomez89/songpipe/internal/translation"
)

// runtime holds the wired pipeline and whatever must be released with it.
type runtime struct {
	orchestrator *pipeline.Orchestrator
	closers      []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// buildRuntime wires every step collaborator from cfg. Credentials are
// only demanded for the steps that will run.
func buildRuntime(ctx context.Context, cfg *config.Config, db *store.DB, mode pipeline.Mode, owner string, log *logger.Logger) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()
	runs := func(step string) bool { return mode.All || mode.Step == "" || mode.Step == step }

	hc := &http.Client{Timeout: constants.DefaultHTTPTimeout}

	metadata := musicbrainz.NewCachedClient(musicbrainz.NewClient(cfg.MusicBrainzURL, hc), db, constants.DefaultCacheTTL)
	lyricSource := lyrics.MultiSource{lyrics.NewLRCLib(cfg.LRCLibURL, hc)}

	mlcClient := mlc.NewClient(cfg.MLCURL, hc)
	mlcClient.MaxWorks = cfg.MaxWorks
	mlcClient.MaxRecordingsPerWork = cfg.MaxRecordingsPerWork

	primary := quansic.NewClient(cfg.QuansicURL, hc)
	opts := []resolver.Option{resolver.WithWorks(primary)}
	if cfg.RedisAddr != "" {
		l1, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, constants.DefaultCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, l1.Close)
		opts = append(opts, resolver.WithL1(l1))
	}
	chain := resolver.NewChain(db, primary, bmi.NewClient(cfg.BMIURL, hc), mlcClient, log, opts...)

	local, err := objectstore.NewLocal(cfg.AudioDir)
	if err != nil {
		return nil, err
	}
	var (
		objects objectstore.Store = local
		s3      *objectstore.S3
	)
	if cfg.S3Endpoint != "" {
		s3, err = objectstore.NewS3(ctx, objectstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		objects = s3
	}
	audio := objectstore.NewSource(s3, local, nil)

	if runs(constants.StepAlignLyrics) && cfg.AlignmentAPIKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required to run %s", constants.StepAlignLyrics)
	}
	aligner := alignment.NewAdapter(alignment.NewClient(cfg.AlignmentURL, cfg.AlignmentAPIKey, nil), audio)

	var translator pipeline.LineTranslator
	if runs(constants.StepTranslateLyrics) {
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required to run %s", constants.StepTranslateLyrics)
		}
		gemini, err := translation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, gemini.Close)
		translator = translation.NewAdapter(gemini)
	}

	steps := pipeline.Steps(pipeline.Deps{
		Payloads:        db,
		Metadata:        metadata,
		Lyrics:          lyricSource,
		Resolver:        chain,
		Audio:           audio,
		Objects:         objects,
		Aligner:         aligner,
		Translator:      translator,
		SourceLanguage:  cfg.SourceLanguage,
		TargetLanguages: cfg.TargetLanguages,
		Quorum:          constants.TranslationQuorum,
		MaxAudioBytes:   constants.MaxAudioBytes,
		Logger:          log,
	})

	processor := pipeline.NewProcessor(db, owner, cfg.LeaseTTL(), log)
	rt.orchestrator = pipeline.NewOrchestrator(db, processor, steps, log)
	return rt, nil
}
