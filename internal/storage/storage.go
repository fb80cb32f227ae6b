package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/HarareMetro/internal/processor"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Channel 对应一个新闻源，启动时按注册表确保存在
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:128;uniqueIndex" json:"name"`
	FeedURL string `gorm:"size:512" json:"feedUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ArchivedArticle 历史文章。latest_news 每轮整体覆盖，这里保留所有抓到过的文章
type ArchivedArticle struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Title          string         `gorm:"size:512" json:"title"`
	Summary        string         `gorm:"size:1200" json:"summary"`
	Category       string         `gorm:"size:32;index" json:"category"`
	Source         string         `gorm:"size:128;index" json:"source"`
	URL            string         `gorm:"size:1024;index" json:"url"`
	PublishedAt    time.Time      `gorm:"index" json:"publishedAt"`
	Keywords       datatypes.JSON `gorm:"type:jsonb" json:"keywords"`
	RelevanceScore float64        `json:"relevanceScore"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const archiveListCacheTTL = 5 * time.Minute

// Archive 基于 Postgres 的文章归档，Redis 可选，用于列表缓存
type Archive struct {
	DB    *gorm.DB
	Redis *redis.Client
	log   *zap.SugaredLogger
}

func OpenArchive(dsn string, rdb *redis.Client, log *zap.SugaredLogger) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Channel{}, &ArchivedArticle{}); err != nil {
		return nil, err
	}
	return &Archive{DB: db, Redis: rdb, log: log}, nil
}

// EnsureChannel 确保某个新闻源存在
func (a *Archive) EnsureChannel(name, feedURL string) (*Channel, error) {
	ch := &Channel{}
	if err := a.DB.Where("name = ?", name).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Name:    name,
		FeedURL: feedURL,
		Status:  "active",
	}
	if err := a.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断，确保不会超过字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func toArchived(it processor.Article) ArchivedArticle {
	published, err := time.Parse(time.RFC3339, it.PublishedAt)
	if err != nil {
		published = time.Now().UTC()
	}
	kws := it.Keywords
	if kws == nil {
		kws = []string{}
	}
	kwJSON, _ := json.Marshal(kws)
	return ArchivedArticle{
		ID:             it.ID,
		Title:          truncateRunesDB(toValidUTF8(it.Title), 512),
		Summary:        truncateRunesDB(toValidUTF8(it.Summary), 1200),
		Category:       it.Category,
		Source:         it.Source,
		URL:            truncateRunesDB(it.URL, 1024),
		PublishedAt:    published,
		Keywords:       datatypes.JSON(kwJSON),
		RelevanceScore: it.RelevanceScore,
	}
}

// fromArchived 关键词 jsonb 损坏时返回空关键词和错误，其余字段照常转换
func fromArchived(n ArchivedArticle) (processor.Article, error) {
	kws := []string{}
	var kwErr error
	if len(n.Keywords) > 0 {
		if err := json.Unmarshal(n.Keywords, &kws); err != nil {
			kws = []string{}
			kwErr = fmt.Errorf("decode keywords of %s: %w", n.ID, err)
		}
	}
	return processor.Article{
		ID:             n.ID,
		Title:          n.Title,
		Summary:        n.Summary,
		Category:       n.Category,
		Source:         n.Source,
		PublishedAt:    n.PublishedAt.UTC().Format(time.RFC3339),
		URL:            n.URL,
		Keywords:       kws,
		RelevanceScore: n.RelevanceScore,
	}, kwErr
}

// SaveBatch 以文章 ID 作为幂等键写入；已存在时更新标题、摘要和分数
func (a *Archive) SaveBatch(ctx context.Context, items []processor.Article) error {
	db := a.DB.WithContext(ctx)
	for _, it := range items {
		fresh := toArchived(it)
		n := fresh
		// 已存在时 FirstOrCreate 会把库里的旧值读回 n，更新时使用 fresh
		if err := db.Where("id = ?", fresh.ID).FirstOrCreate(&n).Error; err != nil {
			return err
		}
		if err := db.Model(&n).Updates(map[string]any{
			"title":           fresh.Title,
			"summary":         fresh.Summary,
			"category":        fresh.Category,
			"relevance_score": fresh.RelevanceScore,
		}).Error; err != nil {
			a.log.Warnf("archive: update %s failed: %v", n.ID, err)
		}
	}
	// 列表缓存依赖短 TTL 自然过期，这里不做通配删除
	return nil
}

func archiveCacheKey(category, source string, limit int) string {
	return fmt.Sprintf("archive:list:%s:%s:%d", category, source, limit)
}

// ListArticles 按分类/来源筛选归档文章，发布时间倒序，结果缓存 5 分钟
func (a *Archive) ListArticles(ctx context.Context, category, source string, limit int) ([]processor.Article, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	cacheKey := archiveCacheKey(category, source, limit)

	if a.Redis != nil {
		if bs, err := a.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []processor.Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	db := a.DB.WithContext(ctx).Model(&ArchivedArticle{})
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if source != "" {
		db = db.Where("source = ?", source)
	}
	var rows []ArchivedArticle
	if err := db.Order("published_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := make([]processor.Article, 0, len(rows))
	for _, r := range rows {
		it, err := fromArchived(r)
		if err != nil {
			a.log.Warnf("archive: %v", err)
		}
		list = append(list, it)
	}

	if a.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = a.Redis.Set(ctx, cacheKey, bs, archiveListCacheTTL).Err()
		}
	}
	return list, nil
}
