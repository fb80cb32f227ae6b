package app

import (
	"context"
	"fmt"

	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/LJTian/HarareMetro/internal/config"
	"github.com/LJTian/HarareMetro/internal/processor"
	"github.com/LJTian/HarareMetro/internal/scheduler"
	"github.com/LJTian/HarareMetro/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App 汇总 cmd/api 与 cmd/collect 共用的依赖
type App struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Registry *collector.Registry
	Snapshot *storage.SnapshotStore
	// Archive 未配置 POSTGRES_DSN 时为 nil
	Archive *storage.Archive

	fetcher   collector.Fetcher
	processor *processor.Processor
	archiver  scheduler.Archiver
	redis     *storage.RedisKV
}

func New(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	reg, err := collector.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	a := &App{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		fetcher:   collector.NewFeedFetcher(cfg.UserAgent()),
		processor: processor.NewProcessor(nil, nil),
	}

	var kv storage.KV
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		a.redis = storage.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		rdb = a.redis.Client()
		kv = a.redis
	} else {
		log.Warn("REDIS_ADDR not set, latest_news is kept in memory only")
		kv = storage.NewMemoryKV()
	}
	a.Snapshot = storage.NewSnapshotStore(kv)

	if cfg.PostgresDSN != "" {
		arch, err := storage.OpenArchive(cfg.PostgresDSN, rdb, log)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		// 确保每个新闻源都有对应的 channel 记录
		for _, src := range reg.Sources() {
			if _, err := arch.EnsureChannel(src.Name, src.URL); err != nil {
				return nil, fmt.Errorf("ensure channel %s: %w", src.Name, err)
			}
		}
		a.Archive = arch
		a.archiver = arch
	}
	return a, nil
}

// NewUpdater 用给定的源列表和快照目标构建 Updater，配置了归档时一并写入归档
func (a *App) NewUpdater(reg *collector.Registry, snap scheduler.Snapshotter) *scheduler.Updater {
	var opts []scheduler.Option
	if a.archiver != nil {
		opts = append(opts, scheduler.WithArchive(a.archiver))
	}
	return scheduler.NewUpdater(reg, a.fetcher, a.processor, snap, a.Log, opts...)
}

// NewDryRunUpdater 只抓取和处理，不写快照也不写归档
func (a *App) NewDryRunUpdater(reg *collector.Registry) *scheduler.Updater {
	return scheduler.NewUpdater(reg, a.fetcher, a.processor, discardSnapshot{}, a.Log)
}

type discardSnapshot struct{}

func (discardSnapshot) SaveLatest(context.Context, []processor.Article) error { return nil }

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warnf("close redis: %v", err)
		}
	}
	if a.Archive != nil {
		if sqlDB, err := a.Archive.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.Log.Sync()
}
