package main

import (
	"context"
	"slices"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/persistence"
	"github.com/kochabx/cardiac/readings"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/store"
	"github.com/kochabx/cardiac/store/kafka"
	"github.com/kochabx/cardiac/stream"
)

// deps 各命令共享的组件，按需创建，Close 逆序释放
type deps struct {
	cfg      *Config
	logger   *log.Logger
	backend  *backend.Client
	storage  store.Storage
	sessions *session.Store

	closers []func() error
}

func newDeps(ctx context.Context, cfg *Config, logger *log.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger}

	b, err := backend.New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	d.backend = b

	s, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	d.storage = s
	d.closers = append(d.closers, s.Close)

	d.sessions = session.New(b, s, session.WithLogger(logger))
	return d, nil
}

func (d *deps) persistence() *persistence.Synchronizer {
	return persistence.New(d.backend, d.sessions, persistence.WithLogger(d.logger))
}

func (d *deps) dialer() (*stream.Dialer, error) {
	return stream.NewDialer(d.backend, d.cfg.Stream, stream.WithLogger(d.logger))
}

func (d *deps) downloader() (*readings.Downloader, error) {
	sink, err := readings.NewSink(d.cfg.Downloads)
	if err != nil {
		return nil, err
	}
	dl, err := readings.New(d.backend, d.sessions, sink, d.cfg.Downloads.Workers)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() error { dl.Close(); return nil })
	return dl, nil
}

// kafka 未启用时返回 nil
func (d *deps) kafka() (*kafka.Client, error) {
	if !d.cfg.Kafka.Enabled {
		return nil, nil
	}
	c, err := kafka.New(d.cfg.Kafka, kafka.WithLogger(d.logger))
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, c.Close)
	return c, nil
}

func (d *deps) Close() error {
	var errs []error
	for _, fn := range slices.Backward(d.closers) {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
