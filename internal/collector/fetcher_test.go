package collector

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const testUA = "HarareMetro/1.0 (+https://www.hararemetro.co.zw)"

func TestFeedFetcherSendsUserAgent(t *testing.T) {
	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case uaCh <- r.Header.Get("User-Agent"):
		default:
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssThreeItems))
	}))
	defer srv.Close()

	f := NewFeedFetcher(testUA)
	body, err := f.Fetch(Source{Name: "test", URL: srv.URL + "/feed"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotUA := <-uaCh; gotUA != testUA {
		t.Fatalf("User-Agent = %q, want %q", gotUA, testUA)
	}
	if body != rssThreeItems {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFeedFetcherFetchesSameURLTwice(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(rssThreeItems))
	}))
	defer srv.Close()

	f := NewFeedFetcher(testUA)
	src := Source{Name: "test", URL: srv.URL}
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(src); err != nil {
			t.Fatalf("Fetch #%d error: %v", i, err)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", n)
	}
}

func TestFeedFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewFeedFetcher(testUA).Fetch(Source{Name: "down", URL: srv.URL})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("StatusCode = %d, want 503", fe.StatusCode)
	}
	if fe.Source != "down" {
		t.Fatalf("Source = %q, want %q", fe.Source, "down")
	}
}

func TestFeedFetcherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // 关闭后连接被拒绝

	_, err := NewFeedFetcher(testUA).Fetch(Source{Name: "offline", URL: url})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Err == nil || fe.StatusCode != 0 {
		t.Fatalf("transport failure should carry the underlying error: %+v", fe)
	}
}

// latin1Feed 里的 \xe9 是 ISO-8859-1 编码的 é
const latin1Feed = "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
	"<rss><channel><item><title>Caf\xe9 opens in Harare</title><link>https://news.example/cafe</link></item></channel></rss>"

func TestFeedFetcherLatin1FeedDecodedOnce(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
	}{
		{"charset in header", "application/rss+xml; charset=ISO-8859-1"},
		{"charset only in declaration", "application/rss+xml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				_, _ = w.Write([]byte(latin1Feed))
			}))
			defer srv.Close()

			body, err := NewFeedFetcher(testUA).Fetch(Source{Name: "latin1", URL: srv.URL})
			if err != nil {
				t.Fatalf("Fetch error: %v", err)
			}
			got, err := ParseFeed(body)
			if err != nil {
				t.Fatalf("ParseFeed error: %v", err)
			}
			if len(got.Items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(got.Items))
			}
			if title := got.Items[0]["title"]; title != "Café opens in Harare" {
				t.Fatalf("title = %#v, want %q", title, "Café opens in Harare")
			}
		})
	}
}

func TestDeclareUTF8(t *testing.T) {
	decl := []byte(`<?xml version="1.0" encoding='windows-1252'?><rss/>`)

	if got := string(declareUTF8(decl, "text/xml; charset=windows-1252")); got != `<?xml version="1.0" encoding="UTF-8"?><rss/>` {
		t.Fatalf("declaration should be rewritten, got %q", got)
	}
	// 没有 charset 或本身就是 UTF-8 时 colly 不会转码，声明保持原样
	for _, ct := range []string{"text/xml", "text/xml; charset=UTF-8", ""} {
		if got := string(declareUTF8(decl, ct)); got != string(decl) {
			t.Fatalf("declareUTF8(%q) should not touch the body, got %q", ct, got)
		}
	}
}
