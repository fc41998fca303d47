package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/auraseo/aura_server/config"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 AuraBot/1.0"

// 入库前的内容截断上限
const maxStoredContent = 50000

// PageFacts 单页抓取结果，原样传递给打分器
type PageFacts struct {
	URL            string                   `json:"url"`
	FinalURL       string                   `json:"final_url"` // 跟随重定向后的地址
	StatusCode     int                      `json:"status_code"`
	LoadTime       float64                  `json:"load_time"` // 秒
	HTML           string                   `json:"html"`
	Text           string                   `json:"text"`
	MetaTags       map[string]string        `json:"meta_tags"`
	Headings       map[string][]string      `json:"headings"` // h1-h6
	StructuredData []map[string]interface{} `json:"structured_data"`
	MobileFriendly bool                     `json:"mobile_friendly"`
	SSLEnabled     bool                     `json:"ssl_enabled"`
}

// Crawler 网页抓取器，提取 SEO/AEO 所需的页面信号
type Crawler struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

func New(cfg *config.CrawlerConfig) *Crawler {
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Crawler{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		userAgent:    ua,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch 抓取单个 URL 并提取页面信号
func (c *Crawler) Fetch(ctx context.Context, url string) (*PageFacts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	loadTime := time.Since(start).Seconds()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	facts := &PageFacts{
		URL:            url,
		FinalURL:       finalURL,
		StatusCode:     resp.StatusCode,
		LoadTime:       round2(loadTime),
		HTML:           truncate(string(body), maxStoredContent),
		Text:           truncate(extractText(doc), maxStoredContent),
		MetaTags:       extractMetaTags(doc),
		Headings:       extractHeadings(doc),
		StructuredData: extractStructuredData(doc),
		SSLEnabled:     strings.HasPrefix(finalURL, "https://"),
	}
	facts.MobileFriendly = facts.MetaTags["viewport"] != ""

	return facts, nil
}

func extractText(doc *goquery.Document) string {
	sel := doc.Find("body").Clone()
	sel.Find("script, style, noscript").Remove()
	text := sel.Text()

	// 压缩连续空白，保留可读的正文
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

func extractMetaTags(doc *goquery.Document) map[string]string {
	tags := make(map[string]string)

	tags["title"] = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			name, ok = s.Attr("property")
		}
		content, hasContent := s.Attr("content")
		if ok && hasContent && name != "" {
			tags[strings.ToLower(name)] = content
		}
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		tags["canonical"] = href
	}

	return tags
}

func extractHeadings(doc *goquery.Document) map[string][]string {
	headings := make(map[string][]string, 6)
	for i := 1; i <= 6; i++ {
		level := fmt.Sprintf("h%d", i)
		var texts []string
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				texts = append(texts, t)
			}
		})
		headings[level] = texts
	}
	return headings
}

func extractStructuredData(doc *goquery.Document) []map[string]interface{} {
	var data []map[string]interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &obj); err == nil {
			data = append(data, obj)
			return
		}
		// JSON-LD 也可能是数组形式
		var arr []map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &arr); err == nil {
			data = append(data, arr...)
		}
	})
	return data
}

// truncate 按字节上限截断，回退到 rune 边界，避免把多字节字符切成半个
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
