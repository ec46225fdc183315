package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/duskmoor/corkboard/internal/config"
	"github.com/duskmoor/corkboard/internal/printer"
	"github.com/duskmoor/corkboard/internal/service"
	"github.com/duskmoor/corkboard/internal/store"
	"github.com/duskmoor/corkboard/pkg/board"
)

// withService loads the configuration, connects the configured store backend
// and runs fn against a started service. Used by every command except init.
func withService(fn func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"Configuration not found or invalid",
			err.Error(),
			[]string{
				"Run 'cork init' to create a corkboard.yml in this directory",
				"Or point --config at an existing configuration file",
			},
		)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	svc := service.New(st, service.Options{
		ReplicaID:    cfg.Board.Replica,
		HistoryLimit: cfg.HistoryLimit(),
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start board service: %w", err)
	}
	return fn(ctx, svc)
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid store.redis_url: %w", err)
		}
		rs, err := store.NewRedisStore(opts, cfg.Board.Name)
		if err != nil {
			return nil, nil, err
		}
		if err := rs.Ping(context.Background()); err != nil {
			return nil, nil, printer.Error(
				"Cannot connect to Redis",
				err.Error(),
				[]string{
					"Check that Redis is running at " + cfg.Store.RedisURL,
					"Or set CORK_REDIS_URL to reach a different instance",
				},
			)
		}
		return rs, func() { rs.Close() }, nil
	case "file":
		fs, err := store.NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store.backend: %q", cfg.Store.Backend)
	}
}

// shortID abbreviates a window id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveColumn matches a user-supplied reference against column names first,
// then ids and unique id prefixes.
func resolveColumn(b board.Board, ref string) (board.Column, error) {
	if c, ok := b.ColumnByName(ref); ok {
		return c, nil
	}
	if c, ok := b.ColumnByID(ref); ok {
		return c, nil
	}
	var matches []board.Column
	for _, c := range b.Columns {
		if strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return board.Column{}, fmt.Errorf("no column matches %q", ref)
	default:
		return board.Column{}, fmt.Errorf("column reference %q is ambiguous", ref)
	}
}

// resolveRecord matches a user-supplied reference against window ids, unique
// id prefixes and unique names, in that order.
func resolveRecord(b board.Board, ref string) (board.Record, error) {
	if r, ok := b.RecordByID(ref); ok {
		return r, nil
	}
	var matches []board.Record
	for _, r := range b.Windows {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return board.Record{}, fmt.Errorf("window reference %q is ambiguous", ref)
	}
	for _, r := range b.Windows {
		if r.Name == ref {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return board.Record{}, fmt.Errorf("no window matches %q", ref)
	default:
		return board.Record{}, fmt.Errorf("several windows are named %q, use an id prefix", ref)
	}
}
