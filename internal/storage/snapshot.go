package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LJTian/HarareMetro/internal/processor"
)

// LatestNewsKey 前端读取的快照键，整份覆盖写入
const LatestNewsKey = "latest_news"

// SnapshotStore 读写最新一轮抓取的文章列表
type SnapshotStore struct {
	kv KV
}

func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// SaveLatest 整体覆盖 latest_news，不做增量合并；并发写入时后写者胜出
func (s *SnapshotStore) SaveLatest(ctx context.Context, articles []processor.Article) error {
	if articles == nil {
		articles = []processor.Article{}
	}
	bs, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.kv.Put(ctx, LatestNewsKey, string(bs)); err != nil {
		return fmt.Errorf("write %s: %w", LatestNewsKey, err)
	}
	return nil
}

// LatestRaw 原样返回存储的字符串，不校验内容
func (s *SnapshotStore) LatestRaw(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, LatestNewsKey)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", LatestNewsKey, err)
	}
	return v, ok, nil
}

// Latest 解码快照，供命令行工具查看
func (s *SnapshotStore) Latest(ctx context.Context) ([]processor.Article, error) {
	raw, ok, err := s.LatestRaw(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []processor.Article{}, nil
	}
	var out []processor.Article
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}
