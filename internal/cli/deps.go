package cli

import (
	"errors"

	"github.com/roach88/busstats/internal/clock"
	"github.com/roach88/busstats/internal/downloader"
	"github.com/roach88/busstats/internal/notify"
	"github.com/roach88/busstats/internal/platform"
	"github.com/roach88/busstats/internal/scraper"
	"github.com/roach88/busstats/internal/staging"
	"github.com/roach88/busstats/internal/store"
	"github.com/roach88/busstats/internal/token"
)

func (o *RootOptions) newDownloader() *downloader.Downloader {
	cfg := o.Config.Downloader
	return downloader.New(downloader.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Attempts:  cfg.Retries,
		Interval:  cfg.RetryInterval,
	}, downloader.WithLogger(o.Logger))
}

func (o *RootOptions) newScraper() *scraper.Scraper {
	return scraper.New(o.newDownloader(), o.Config.Scraper.BaseURL, clock.System)
}

func (o *RootOptions) newStaging() *staging.Store {
	return staging.New(o.Platform.Paths.StagingPath())
}

// alertSink mails through the configured SMTP server, or logs when none is set.
func (o *RootOptions) alertSink() notify.Sink {
	smtp := o.Config.Alerts.SMTP
	if smtp.Server == "" {
		return notify.LogSink{Logger: o.Logger}
	}
	return notify.NewEmailSink(notify.SMTPConfig{
		Server:   smtp.Server,
		Port:     smtp.Port,
		From:     smtp.From,
		Username: smtp.Username,
		Password: smtp.Password,
		To:       o.Config.Alerts.To,
	}, nil)
}

func (o *RootOptions) codec(formatter *OutputFormatter) (*token.Codec, error) {
	secret, err := o.Config.RequireSecret()
	if err != nil {
		return nil, formatter.fail(ExitCommandError, ErrCodeConfig, "token secret not configured", err)
	}
	codec, err := token.NewCodec(secret, clock.System)
	if err != nil {
		return nil, formatter.fail(ExitCommandError, ErrCodeConfig, "invalid token secret", err)
	}
	return codec, nil
}

// openStore opens the durable store. The caller closes it.
func (o *RootOptions) openStore(formatter *OutputFormatter) (*store.Store, error) {
	st, err := o.Platform.Database.Open()
	if errors.Is(err, platform.ErrNoDatabase) {
		return nil, formatter.fail(ExitCommandError, ErrCodeEnvironment, "no database on this node", err)
	}
	if err != nil {
		return nil, formatter.fail(ExitCommandError, ErrCodeGeneric, "failed to open database", err)
	}
	return st, nil
}

func (o *RootOptions) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		o.Logger.Error("error closing database", "error", err)
	}
}
