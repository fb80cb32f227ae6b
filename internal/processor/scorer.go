package processor

import (
	"math"
	"time"
)

// Scorer 计算 Article.RelevanceScore，可按需替换
type Scorer interface {
	Score(a Article, publishedAt, now time.Time) float64
}

// ScorerFunc 让普通函数满足 Scorer
type ScorerFunc func(a Article, publishedAt, now time.Time) float64

func (f ScorerFunc) Score(a Article, publishedAt, now time.Time) float64 {
	return f(a, publishedAt, now)
}

// RecencyKeywordScorer 新鲜度按半衰期衰减，再叠加关键词命中数
type RecencyKeywordScorer struct {
	HalfLife      time.Duration
	KeywordWeight float64
}

func DefaultScorer() Scorer {
	return RecencyKeywordScorer{HalfLife: 24 * time.Hour, KeywordWeight: 0.1}
}

func (s RecencyKeywordScorer) Score(a Article, publishedAt, now time.Time) float64 {
	age := now.Sub(publishedAt)
	if age < 0 {
		age = 0
	}
	recency := 1.0
	if s.HalfLife > 0 {
		recency = math.Pow(0.5, age.Hours()/s.HalfLife.Hours())
	}
	score := recency + s.KeywordWeight*float64(len(a.Keywords))
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}
