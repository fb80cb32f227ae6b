package collector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// RawFeedItem 是 XML 解析后的一条原始条目，不同源字段差异很大，下游按需取值
type RawFeedItem = map[string]any

// FeedShape 标记条目是从哪种文档结构中取出的
type FeedShape int

const (
	ShapeNone FeedShape = iota
	ShapeRSS            // rss.channel.item
	ShapeAtom           // feed.entry
)

func (s FeedShape) String() string {
	switch s {
	case ShapeRSS:
		return "rss"
	case ShapeAtom:
		return "atom"
	default:
		return "none"
	}
}

// ParsedFeed 解析结果；Shape 为 ShapeNone 时 Items 为空
type ParsedFeed struct {
	Shape FeedShape
	Items []RawFeedItem
}

// ParseError 表示响应文本不是合法 XML
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errNoRootElement = errors.New("document has no root element")

// ParseFeed 将 XML 文本转换为嵌套记录，然后依次尝试 rss.channel.item、feed.entry。
// 单条记录会被包装成只有一个元素的切片
func ParseFeed(text string) (ParsedFeed, error) {
	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return ParsedFeed{}, &ParseError{Err: err}
	}

	root, hasElement := documentRecord(doc)
	if !hasElement {
		// 纯文本（例如被拦截后返回的提示语）在 encoding/xml 看来不算语法错误
		if strings.TrimSpace(text) != "" {
			return ParsedFeed{}, &ParseError{Err: errNoRootElement}
		}
		return ParsedFeed{Shape: ShapeNone, Items: []RawFeedItem{}}, nil
	}

	shape, raw := resolveShape(root)
	return ParsedFeed{Shape: shape, Items: toItems(raw)}, nil
}

func resolveShape(root map[string]any) (FeedShape, any) {
	if v := lookup(root, "rss", "channel", "item"); v != nil {
		return ShapeRSS, v
	}
	if v := lookup(root, "feed", "entry"); v != nil {
		return ShapeAtom, v
	}
	return ShapeNone, nil
}

func lookup(rec map[string]any, path ...string) any {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func toItems(v any) []RawFeedItem {
	switch t := v.(type) {
	case nil:
		return []RawFeedItem{}
	case []any:
		out := make([]RawFeedItem, 0, len(t))
		for _, e := range t {
			out = append(out, asItem(e))
		}
		return out
	default:
		return []RawFeedItem{asItem(t)}
	}
}

// asItem 处理 <item/> 或 <item>纯文本</item> 这类没有子元素的条目
func asItem(v any) RawFeedItem {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		if t == "" {
			return RawFeedItem{}
		}
		return RawFeedItem{"#text": t}
	default:
		return RawFeedItem{}
	}
}

func documentRecord(doc *xmlquery.Node) (map[string]any, bool) {
	rec := make(map[string]any)
	found := false
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		found = true
		addChild(rec, qualifiedName(c), elementValue(c))
	}
	return rec, found
}

// elementValue 只有文本的元素返回字符串；带属性或子元素的返回 map，
// 属性以 "@" 前缀保存，混合文本保存在 "#text"
func elementValue(n *xmlquery.Node) any {
	rec := make(map[string]any)
	for _, a := range n.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		rec["@"+a.Name.Local] = a.Value
	}

	var text strings.Builder
	hasChild := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			hasChild = true
			addChild(rec, qualifiedName(c), elementValue(c))
		case xmlquery.TextNode, xmlquery.CharDataNode:
			text.WriteString(c.Data)
		}
	}

	t := strings.TrimSpace(text.String())
	if !hasChild && len(rec) == 0 {
		return t
	}
	if t != "" {
		rec["#text"] = t
	}
	return rec
}

func addChild(rec map[string]any, key string, v any) {
	existing, ok := rec[key]
	if !ok {
		rec[key] = v
		return
	}
	if list, ok := existing.([]any); ok {
		rec[key] = append(list, v)
		return
	}
	rec[key] = []any{existing, v}
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}
