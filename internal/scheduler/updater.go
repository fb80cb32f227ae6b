package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/LJTian/HarareMetro/internal/processor"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// 与前端约定的时间格式（毫秒精度 UTC）
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type SourceResult struct {
	Name          string `json:"name"`
	ArticlesCount int    `json:"articlesCount"`
	Status        string `json:"status"`
}

type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// UpdateResult 一轮抓取的汇总，作为 /api/update 的响应体，不单独持久化
type UpdateResult struct {
	Timestamp     string         `json:"timestamp"`
	Sources       []SourceResult `json:"sources"`
	TotalArticles int            `json:"totalArticles"`
	Errors        []SourceError  `json:"errors,omitempty"`
}

// Snapshotter 写入 latest_news
type Snapshotter interface {
	SaveLatest(ctx context.Context, articles []processor.Article) error
}

// Archiver 可选的历史归档
type Archiver interface {
	SaveBatch(ctx context.Context, articles []processor.Article) error
}

// Updater 串行抓取所有新闻源并覆盖写入快照。
// 同一时间只会有一轮在执行，并发调用方共享这一轮的结果
type Updater struct {
	sources   []collector.Source
	fetcher   collector.Fetcher
	processor *processor.Processor
	snapshot  Snapshotter
	archive   Archiver
	log       *zap.SugaredLogger
	now       func() time.Time

	group singleflight.Group
}

type Option func(*Updater)

func WithArchive(a Archiver) Option {
	return func(u *Updater) { u.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

func NewUpdater(reg *collector.Registry, f collector.Fetcher, p *processor.Processor, snap Snapshotter, log *zap.SugaredLogger, opts ...Option) *Updater {
	u := &Updater{
		sources:   reg.Sources(),
		fetcher:   f,
		processor: p,
		snapshot:  snap,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run 执行一轮抓取。单个源失败只记录在结果里；只有快照写入失败才返回 error
func (u *Updater) Run(ctx context.Context) (*UpdateResult, error) {
	// 本轮不随单个请求取消：手动触发的请求断开后，抓取仍然完成并写入快照
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := u.group.Do("update", func() (any, error) {
		return u.run(runCtx)
	})
	if shared {
		u.log.Debugf("update: joined an in-flight run")
	}
	if err != nil {
		return nil, err
	}
	return v.(*UpdateResult), nil
}

func (u *Updater) run(ctx context.Context) (*UpdateResult, error) {
	now := u.now()
	u.log.Infof("update: start, %d sources", len(u.sources))

	result := &UpdateResult{
		Timestamp: now.UTC().Format(timestampLayout),
		Sources:   make([]SourceResult, 0, len(u.sources)),
	}
	var (
		articles  []processor.Article
		succeeded int
	)

	for _, src := range u.sources {
		items, err := u.collect(src)
		if err != nil {
			u.log.Warnf("update: %s failed: %v", src.Name, err)
			result.Sources = append(result.Sources, SourceResult{Name: src.Name, ArticlesCount: 0, Status: StatusError})
			result.Errors = append(result.Errors, SourceError{Source: src.Name, Error: err.Error()})
			continue
		}
		succeeded++
		result.Sources = append(result.Sources, SourceResult{Name: src.Name, ArticlesCount: len(items), Status: StatusSuccess})
		result.TotalArticles += len(items)
		articles = append(articles, u.processor.Normalize(src.Name, items, now)...)
	}

	// 所有源都失败时保留上一份快照，避免前端变成空白
	if succeeded == 0 {
		u.log.Warn("update: no source succeeded, keep previous snapshot")
		return result, nil
	}

	final := processor.Finalize(articles)
	if err := u.snapshot.SaveLatest(ctx, final); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	if u.archive != nil {
		if err := u.archive.SaveBatch(ctx, final); err != nil {
			u.log.Warnf("update: archive failed: %v", err)
		}
	}

	u.log.Infof("update: done, sources=%d ok=%d items=%d saved=%d", len(u.sources), succeeded, result.TotalArticles, len(final))
	return result, nil
}

func (u *Updater) collect(src collector.Source) ([]collector.RawFeedItem, error) {
	body, err := u.fetcher.Fetch(src)
	if err != nil {
		return nil, err
	}
	parsed, err := collector.ParseFeed(body)
	if err != nil {
		return nil, err
	}
	u.log.Debugf("update: %s parsed %d items (%s)", src.Name, len(parsed.Items), parsed.Shape)
	return parsed.Items, nil
}
