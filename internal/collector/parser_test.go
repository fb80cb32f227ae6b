package collector

import (
	"errors"
	"testing"
)

const rssSingleItem = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Herald</title>
    <item>
      <title>Harare City Council announces new infrastructure</title>
      <link>https://www.herald.co.zw/council-infrastructure/</link>
      <pubDate>Mon, 06 Jan 2025 08:00:00 +0200</pubDate>
      <dc:creator>Staff Reporter</dc:creator>
      <description><![CDATA[<p>The <b>council</b> said...</p>]]></description>
    </item>
  </channel>
</rss>`

const rssThreeItems = `<rss version="2.0"><channel>
  <item><title>A</title><link>https://a.example/1</link></item>
  <item><title>B</title><link>https://a.example/2</link></item>
  <item><title>C</title><link>https://a.example/3</link></item>
</channel></rss>`

const atomTwoEntries = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ZimLive</title>
  <entry>
    <title>Warriors prepare for AFCON qualifiers</title>
    <link rel="alternate" href="https://www.zimlive.com/warriors/"/>
    <published>2025-01-06T10:00:00Z</published>
    <summary>Squad named.</summary>
  </entry>
  <entry>
    <title>Second</title>
    <link href="https://www.zimlive.com/second/"/>
  </entry>
</feed>`

func TestParseFeedWrapsSingleRSSItem(t *testing.T) {
	got, err := ParseFeed(rssSingleItem)
	if err != nil {
		t.Fatalf("ParseFeed error: %v", err)
	}
	if got.Shape != ShapeRSS {
		t.Fatalf("shape = %v, want rss", got.Shape)
	}
	if len(got.Items) != 1 {
		t.Fatalf("expected single item wrapped into 1-element slice, got %d", len(got.Items))
	}
	it := got.Items[0]
	if it["title"] != "Harare City Council announces new infrastructure" {
		t.Fatalf("unexpected title: %#v", it["title"])
	}
	if it["dc:creator"] != "Staff Reporter" {
		t.Fatalf("namespaced child should keep its prefix, got %#v", it["dc:creator"])
	}
	if it["description"] != "<p>The <b>council</b> said...</p>" {
		t.Fatalf("CDATA description should be kept as text, got %#v", it["description"])
	}
}

func TestParseFeedKeepsItemSequence(t *testing.T) {
	got, err := ParseFeed(rssThreeItems)
	if err != nil {
		t.Fatalf("ParseFeed error: %v", err)
	}
	if got.Shape != ShapeRSS || len(got.Items) != 3 {
		t.Fatalf("expected 3 rss items, got shape=%v len=%d", got.Shape, len(got.Items))
	}
	for i, want := range []string{"A", "B", "C"} {
		if got.Items[i]["title"] != want {
			t.Fatalf("item[%d].title = %#v, want %q", i, got.Items[i]["title"], want)
		}
	}
}

func TestParseFeedAtomEntries(t *testing.T) {
	got, err := ParseFeed(atomTwoEntries)
	if err != nil {
		t.Fatalf("ParseFeed error: %v", err)
	}
	if got.Shape != ShapeAtom {
		t.Fatalf("shape = %v, want atom", got.Shape)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Items))
	}
	link, ok := got.Items[0]["link"].(map[string]any)
	if !ok {
		t.Fatalf("atom link should be a record with attributes, got %#v", got.Items[0]["link"])
	}
	if link["@href"] != "https://www.zimlive.com/warriors/" || link["@rel"] != "alternate" {
		t.Fatalf("unexpected link attributes: %#v", link)
	}
}

func TestParseFeedNeitherShape(t *testing.T) {
	cases := []string{
		`<rss><channel><title>empty</title></channel></rss>`,
		`<feed xmlns="http://www.w3.org/2005/Atom"><title>no entries</title></feed>`,
		`<html><body>blocked</body></html>`,
		``,
	}
	for _, in := range cases {
		got, err := ParseFeed(in)
		if err != nil {
			t.Fatalf("ParseFeed(%q) error: %v", in, err)
		}
		if got.Shape != ShapeNone {
			t.Fatalf("ParseFeed(%q) shape = %v, want none", in, got.Shape)
		}
		if got.Items == nil || len(got.Items) != 0 {
			t.Fatalf("ParseFeed(%q) should return empty non-nil slice, got %#v", in, got.Items)
		}
	}
}

func TestParseFeedPrefersRSSOverAtom(t *testing.T) {
	// 两种结构同时存在时 rss.channel.item 优先
	in := `<root/>`
	got, err := ParseFeed(in)
	if err != nil || got.Shape != ShapeNone {
		t.Fatalf("unexpected result for unrelated root: %v %v", got.Shape, err)
	}

	rec := map[string]any{
		"rss":  map[string]any{"channel": map[string]any{"item": map[string]any{"title": "r"}}},
		"feed": map[string]any{"entry": map[string]any{"title": "a"}},
	}
	shape, v := resolveShape(rec)
	if shape != ShapeRSS {
		t.Fatalf("resolveShape = %v, want rss", shape)
	}
	if v.(map[string]any)["title"] != "r" {
		t.Fatalf("resolveShape returned wrong value: %#v", v)
	}
}

func TestParseFeedEmptyItemElement(t *testing.T) {
	got, err := ParseFeed(`<rss><channel><item/></channel></rss>`)
	if err != nil {
		t.Fatalf("ParseFeed error: %v", err)
	}
	if got.Shape != ShapeRSS || len(got.Items) != 1 {
		t.Fatalf("empty <item/> still counts as one item, got shape=%v len=%d", got.Shape, len(got.Items))
	}
}

func TestParseFeedMalformed(t *testing.T) {
	for _, in := range []string{
		`<rss><channel><item><title>x</title></channel></rss>`,
		`<rss><channel><item>`,
		`Service temporarily unavailable`,
	} {
		_, err := ParseFeed(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("ParseFeed(%q) error = %v, want *ParseError", in, err)
		}
	}
}
