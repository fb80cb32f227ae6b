package collector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gocolly/colly/v2"
)

// Fetcher 抽象每一次对新闻源的网络请求，返回原始响应文本
type Fetcher interface {
	Fetch(src Source) (string, error)
}

// FetchError 表示抓取失败：要么是非 2xx 状态码，要么是底层传输错误
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FeedFetcher 基于 colly 逐个 GET 新闻源。不重试，也不覆盖默认超时
type FeedFetcher struct {
	userAgent string
}

func NewFeedFetcher(userAgent string) *FeedFetcher {
	return &FeedFetcher{userAgent: userAgent}
}

func (f *FeedFetcher) Fetch(src Source) (string, error) {
	// 每次抓取新建 collector：允许重复访问同一 URL（定时任务每轮都会访问），
	// 并让非 2xx 响应也走 OnResponse，以便拿到状态码
	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	var (
		status int
		body   []byte
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = declareUTF8(r.Body, r.Headers.Get("Content-Type"))
	})

	if err := c.Visit(src.URL); err != nil {
		return "", &FetchError{Source: src.Name, URL: src.URL, Err: err}
	}
	if status < 200 || status > 299 {
		return "", &FetchError{Source: src.Name, URL: src.URL, StatusCode: status}
	}
	return string(body), nil
}

var xmlEncodingDecl = regexp.MustCompile(`\A(\x{FEFF})?(\s*<\?xml[^>]*?\bencoding\s*=\s*)["'][^"']*["']`)

// declareUTF8 与 colly 的字符集转换保持一致：响应头带非 UTF-8 charset 时，
// colly 已把 body 转成 UTF-8，这里把 XML 声明里的 encoding 改成 UTF-8，避免解析时再解码一次
func declareUTF8(body []byte, contentType string) []byte {
	ct := strings.ToLower(contentType)
	if !strings.Contains(ct, "charset") || strings.Contains(ct, "utf-8") || strings.Contains(ct, "utf8") {
		return body
	}
	return xmlEncodingDecl.ReplaceAll(body, []byte(`${1}${2}"UTF-8"`))
}
