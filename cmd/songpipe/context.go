package main

import (
	"strings"
	"sync"

	"github.com/cesargomez89/songpipe/internal/config"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/store"
)

// commandContext lazily loads what subcommands share: configuration, the
// logger and the store.
type commandContext struct {
	configPath string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	log *logger.Logger
	db  *store.DB
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	if c.log == nil {
		cfg, err := c.ensureConfig()
		if err != nil {
			return logger.Default()
		}
		c.log = logger.New(logger.Config{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
		})
	}
	return c.log
}

// store opens the database once; the schema is applied on open.
func (c *commandContext) store() (*store.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dsn := cfg.DBPath
	if cfg.DBDriver == string(store.DialectPostgres) {
		dsn = cfg.DatabaseURL
	}
	db, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

func (c *commandContext) close() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger().Warn("Failed to close database", "error", err)
		}
		c.db = nil
	}
	if c.log != nil {
		_ = c.log.Close()
		c.log = nil
	}
}
