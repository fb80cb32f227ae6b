package processor

import (
	"sort"
	"strings"
	"time"

	"github.com/LJTian/HarareMetro/internal/collector"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

const summaryMaxRunes = 300

// Article 是写入 latest_news 快照、返回给前端的统一结构
type Article struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Category       string   `json:"category"`
	Source         string   `json:"source"`
	PublishedAt    string   `json:"publishedAt"`
	URL            string   `json:"url"`
	Keywords       []string `json:"keywords"`
	RelevanceScore float64  `json:"relevanceScore"`
}

// Processor 把各个源解析出的原始条目整理成 Article
type Processor struct {
	classifier *Classifier
	scorer     Scorer
}

func NewProcessor(c *Classifier, s Scorer) *Processor {
	if c == nil {
		c = defaultClassifier
	}
	if s == nil {
		s = DefaultScorer()
	}
	return &Processor{classifier: c, scorer: s}
}

// Normalize 处理单个源的条目；没有标题也没有链接的条目直接丢弃。
// now 作为缺失或无法解析的发布时间的兜底
func (p *Processor) Normalize(source string, items []collector.RawFeedItem, now time.Time) []Article {
	out := make([]Article, 0, len(items))
	for _, it := range items {
		link := itemLink(it)
		title := stripHTML(firstText(it, "title"))
		if title == "" && link == "" {
			continue
		}
		summary := truncateRunes(stripHTML(firstText(it, "description", "summary", "content:encoded", "content")), summaryMaxRunes)

		published := now
		if t, ok := itemTime(it); ok {
			published = t
		}

		text := title + " " + summary
		a := Article{
			ID:          articleID(source, link, title),
			Title:       title,
			Summary:     summary,
			Category:    p.classifier.Categorize(text),
			Source:      source,
			PublishedAt: published.UTC().Format(time.RFC3339),
			URL:         link,
			Keywords:    p.classifier.MatchKeywords(text),
		}
		a.RelevanceScore = p.scorer.Score(a, published, now)
		out = append(out, a)
	}
	return out
}

// Finalize 按 ID 去重（先到先得），并按发布时间倒序；同一时间保持原有顺序（即源的声明顺序）
func Finalize(articles []Article) []Article {
	out := make([]Article, 0, len(articles))
	seen := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	// PublishedAt 统一为 UTC 的 RFC3339，字符串比较即时间比较
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt > out[j].PublishedAt
	})
	return out
}

// articleID 基于 源名+链接 生成稳定 ID，同一篇文章每轮抓取 ID 不变
func articleID(source, link, title string) string {
	key := link
	if key == "" {
		key = title
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"|"+key)).String()
}

// firstText 依次尝试多个字段，返回第一个非空文本
func firstText(it collector.RawFeedItem, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(textOf(it[k])); s != "" {
			return s
		}
	}
	return ""
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["#text"].(string)
		return s
	case []any:
		for _, e := range t {
			if s := textOf(e); s != "" {
				return s
			}
		}
	}
	return ""
}

// itemLink RSS 的 <link> 是文本；Atom 的 <link> 是带 href 的元素，可能有多个，
// 优先 rel="alternate" 或未声明 rel 的那个
func itemLink(it collector.RawFeedItem) string {
	switch t := it["link"].(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
	case map[string]any:
		if href := atomHref(t); href != "" {
			return href
		}
		if s, _ := t["#text"].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	case []any:
		fallback := ""
		for _, e := range t {
			switch l := e.(type) {
			case string:
				if s := strings.TrimSpace(l); s != "" && fallback == "" {
					fallback = s
				}
			case map[string]any:
				href := atomHref(l)
				if href == "" {
					continue
				}
				rel, _ := l["@rel"].(string)
				if rel == "" || rel == "alternate" {
					return href
				}
				if fallback == "" {
					fallback = href
				}
			}
		}
		if fallback != "" {
			return fallback
		}
	}

	for _, k := range []string{"guid", "id"} {
		if s := strings.TrimSpace(textOf(it[k])); strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			return s
		}
	}
	return ""
}

func atomHref(l map[string]any) string {
	href, _ := l["@href"].(string)
	return strings.TrimSpace(href)
}

func itemTime(it collector.RawFeedItem) (time.Time, bool) {
	for _, k := range []string{"pubDate", "published", "updated", "dc:date"} {
		s := strings.TrimSpace(textOf(it[k]))
		if s == "" {
			continue
		}
		// 不带时区的日期按 UTC 解释，结果与部署机器的时区无关
		if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stripHTML 去掉描述里的 HTML 标签与实体，并压缩空白
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit])) + "…"
}
