package seo

import (
	"fmt"
	"math"
	"strings"

	"github.com/auraseo/aura_server/internal/crawler"
)

// 各评分类目的权重
var weights = map[string]float64{
	"meta_tags":       0.25,
	"headings":        0.15,
	"performance":     0.20,
	"mobile":          0.15,
	"security":        0.10,
	"structured_data": 0.15,
}

// meta 标签的推荐长度
const (
	titleMinLength       = 30
	titleMaxLength       = 60
	descriptionMinLength = 120
	descriptionMaxLength = 160
)

// 加载耗时阈值（秒）
const (
	perfExcellent  = 2.0
	perfGood       = 3.0
	perfAcceptable = 5.0
)

// Recommendation 可执行的优化建议
type Recommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"` // critical, high, medium, low
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// Result SEO 分析结果
type Result struct {
	Score           float64                `json:"score"` // 0-100 加权总分
	CategoryScores  map[string]float64     `json:"category_scores"`
	Issues          []string               `json:"issues"`
	Recommendations []Recommendation       `json:"recommendations"`
	Metrics         map[string]interface{} `json:"metrics"`
}

// Analyzer SEO 打分器，纯函数，无 I/O
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze 对抓取结果做完整 SEO 评分
func (a *Analyzer) Analyze(facts *crawler.PageFacts) *Result {
	scores := make(map[string]float64, len(weights))
	var issues []string
	var recs []Recommendation

	metaScore, metaIssues, metaRecs := a.analyzeMetaTags(facts.MetaTags)
	scores["meta_tags"] = metaScore
	issues = append(issues, metaIssues...)
	recs = append(recs, metaRecs...)

	headingScore, headingIssues, headingRecs := a.analyzeHeadings(facts.Headings)
	scores["headings"] = headingScore
	issues = append(issues, headingIssues...)
	recs = append(recs, headingRecs...)

	perfScore, perfIssue, perfRecs := a.analyzePerformance(facts.LoadTime)
	scores["performance"] = perfScore
	if perfIssue != "" {
		issues = append(issues, perfIssue)
	}
	recs = append(recs, perfRecs...)

	mobileScore, mobileRecs := a.analyzeMobile(facts.MobileFriendly)
	scores["mobile"] = mobileScore
	recs = append(recs, mobileRecs...)

	securityScore, securityRecs := a.analyzeSecurity(facts.SSLEnabled)
	scores["security"] = securityScore
	recs = append(recs, securityRecs...)

	sdScore, sdRecs := a.analyzeStructuredData(facts.StructuredData)
	scores["structured_data"] = sdScore
	recs = append(recs, sdRecs...)

	var total float64
	for key, score := range scores {
		total += score * weights[key]
	}

	return &Result{
		Score:           Round2(total),
		CategoryScores:  scores,
		Issues:          issues,
		Recommendations: recs,
		Metrics: map[string]interface{}{
			"meta_tags":       facts.MetaTags,
			"headings":        facts.Headings,
			"load_time":       facts.LoadTime,
			"mobile_friendly": facts.MobileFriendly,
			"ssl_enabled":     facts.SSLEnabled,
			"structured_data": facts.StructuredData,
		},
	}
}

func (a *Analyzer) analyzeMetaTags(metaTags map[string]string) (float64, []string, []Recommendation) {
	var score float64
	var issues []string
	var recs []Recommendation

	// title 标签（40 分）
	title := metaTags["title"]
	switch {
	case title == "":
		issues = append(issues, "Missing title tag")
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "critical",
			Title:       "Add Title Tag",
			Description: "Every page must have a unique, descriptive title tag (30-60 characters)",
			Impact:      "high",
		})
	case len(title) < titleMinLength:
		issues = append(issues, fmt.Sprintf("Title too short (%d chars, recommended: %d-%d)", len(title), titleMinLength, titleMaxLength))
		score += 20
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "high",
			Title:       "Expand Title Tag",
			Description: fmt.Sprintf("Your title is only %d characters. Expand it to 30-60 characters for better SEO.", len(title)),
			Impact:      "medium",
		})
	case len(title) > titleMaxLength:
		issues = append(issues, fmt.Sprintf("Title too long (%d chars, recommended: %d-%d)", len(title), titleMinLength, titleMaxLength))
		score += 30
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "medium",
			Title:       "Shorten Title Tag",
			Description: fmt.Sprintf("Your title is %d characters. Shorten it to 60 characters or less to avoid truncation in search results.", len(title)),
			Impact:      "medium",
		})
	default:
		score += 40
	}

	// meta description（40 分）
	description := metaTags["description"]
	switch {
	case description == "":
		issues = append(issues, "Missing meta description")
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "high",
			Title:       "Add Meta Description",
			Description: "Add a compelling meta description (120-160 characters) to improve click-through rates from search results.",
			Impact:      "high",
		})
	case len(description) < descriptionMinLength:
		issues = append(issues, fmt.Sprintf("Description too short (%d chars)", len(description)))
		score += 20
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "medium",
			Title:       "Expand Meta Description",
			Description: fmt.Sprintf("Your meta description is only %d characters. Expand it to 120-160 characters for better engagement.", len(description)),
			Impact:      "medium",
		})
	case len(description) > descriptionMaxLength:
		issues = append(issues, fmt.Sprintf("Description too long (%d chars)", len(description)))
		score += 30
	default:
		score += 40
	}

	// Open Graph 标签（10 分）
	ogCount := 0
	for key := range metaTags {
		if len(key) > 3 && key[:3] == "og:" {
			ogCount++
		}
	}
	switch {
	case ogCount >= 4: // og:title, og:description, og:image, og:url
		score += 10
	case ogCount > 0:
		score += 5
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "low",
			Title:       "Complete Open Graph Tags",
			Description: "Add complete Open Graph tags (og:title, og:description, og:image, og:url) to improve social media sharing.",
			Impact:      "low",
		})
	default:
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "medium",
			Title:       "Add Open Graph Tags",
			Description: "Add Open Graph meta tags to control how your content appears when shared on social media platforms.",
			Impact:      "medium",
		})
	}

	// canonical（10 分）
	if _, ok := metaTags["canonical"]; ok {
		score += 10
	} else {
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "low",
			Title:       "Add Canonical URL",
			Description: "Add a canonical link tag to prevent duplicate content issues.",
			Impact:      "low",
		})
	}

	return math.Min(score, 100), issues, recs
}

func (a *Analyzer) analyzeHeadings(headings map[string][]string) (float64, []string, []Recommendation) {
	score := 100.0
	var issues []string
	var recs []Recommendation

	// H1（50 分）
	h1Count := len(headings["h1"])
	if h1Count == 0 {
		score -= 50
		issues = append(issues, "Missing H1 tag")
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "critical",
			Title:       "Add H1 Heading",
			Description: "Every page must have exactly one H1 tag that describes the main topic.",
			Impact:      "high",
		})
	} else if h1Count > 1 {
		score -= 20
		issues = append(issues, fmt.Sprintf("Multiple H1 tags found (%d), should have only one", h1Count))
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "high",
			Title:       "Use Single H1 Tag",
			Description: fmt.Sprintf("You have %d H1 tags. Use only one H1 per page for better SEO.", h1Count),
			Impact:      "medium",
		})
	}

	// H2（30 分）
	if len(headings["h2"]) == 0 && h1Count > 0 {
		score -= 30
		issues = append(issues, "No H2 tags found - consider adding subheadings")
		recs = append(recs, Recommendation{
			Category:    "seo",
			Priority:    "medium",
			Title:       "Add H2 Subheadings",
			Description: "Add H2 tags to structure your content with clear subheadings.",
			Impact:      "medium",
		})
	}

	// 层级检查（20 分）：出现 hN+1 却没有 hN
	for i := 1; i <= 5; i++ {
		current := fmt.Sprintf("h%d", i)
		next := fmt.Sprintf("h%d", i+1)
		if len(headings[next]) > 0 && len(headings[current]) == 0 {
			score -= 20
			issues = append(issues, fmt.Sprintf("Heading hierarchy issue: %s found without %s", strings.ToUpper(next), strings.ToUpper(current)))
			recs = append(recs, Recommendation{
				Category:    "seo",
				Priority:    "low",
				Title:       "Fix Heading Hierarchy",
				Description: "Maintain proper heading hierarchy (H1 -> H2 -> H3) without skipping levels.",
				Impact:      "low",
			})
			break
		}
	}

	return math.Max(score, 0), issues, recs
}

func (a *Analyzer) analyzePerformance(loadTime float64) (float64, string, []Recommendation) {
	switch {
	case loadTime < perfExcellent:
		return 100, "", nil
	case loadTime < perfGood:
		return 80, fmt.Sprintf("Page load time (%.2fs) is acceptable but could be improved", loadTime), []Recommendation{{
			Category:    "seo",
			Priority:    "low",
			Title:       "Optimize Page Speed",
			Description: fmt.Sprintf("Your page loads in %.2f seconds. Consider optimizing images and minifying resources to reach under 2 seconds.", loadTime),
			Impact:      "low",
		}}
	case loadTime < perfAcceptable:
		return 50, fmt.Sprintf("Page load time (%.2fs) is slow", loadTime), []Recommendation{{
			Category:    "seo",
			Priority:    "high",
			Title:       "Improve Page Speed",
			Description: fmt.Sprintf("Your page takes %.2f seconds to load. Optimize images, enable caching, and minify CSS/JS to improve speed.", loadTime),
			Impact:      "high",
		}}
	default:
		return 20, fmt.Sprintf("Page load time (%.2fs) is very slow", loadTime), []Recommendation{{
			Category:    "seo",
			Priority:    "critical",
			Title:       "Critical: Fix Page Speed",
			Description: fmt.Sprintf("Your page takes %.2f seconds to load, which severely impacts SEO and user experience. Prioritize speed optimization.", loadTime),
			Impact:      "critical",
		}}
	}
}

func (a *Analyzer) analyzeMobile(mobileFriendly bool) (float64, []Recommendation) {
	if mobileFriendly {
		return 100, nil
	}
	return 0, []Recommendation{{
		Category:    "seo",
		Priority:    "critical",
		Title:       "Add Viewport Meta Tag",
		Description: `Add <meta name="viewport" content="width=device-width, initial-scale=1"> to make your site mobile-friendly. Mobile-first indexing requires this.`,
		Impact:      "critical",
	}}
}

func (a *Analyzer) analyzeSecurity(sslEnabled bool) (float64, []Recommendation) {
	if sslEnabled {
		return 100, nil
	}
	return 0, []Recommendation{{
		Category:    "seo",
		Priority:    "critical",
		Title:       "Enable HTTPS",
		Description: `Switch to HTTPS to secure your site. Google prioritizes HTTPS sites in search rankings and browsers mark HTTP sites as "Not Secure".`,
		Impact:      "critical",
	}}
}

// Schema.org 中有价值的类型
var validSchemaTypes = map[string]bool{
	"Organization":   true,
	"WebSite":        true,
	"Article":        true,
	"Product":        true,
	"LocalBusiness":  true,
	"FAQPage":        true,
	"BreadcrumbList": true,
}

func (a *Analyzer) analyzeStructuredData(structuredData []map[string]interface{}) (float64, []Recommendation) {
	if len(structuredData) == 0 {
		return 0, []Recommendation{{
			Category:    "seo",
			Priority:    "medium",
			Title:       "Add Structured Data",
			Description: "Add Schema.org structured data (JSON-LD) to help search engines understand your content better and enable rich snippets.",
			Impact:      "medium",
		}}
	}

	for _, item := range structuredData {
		itemType := ""
		switch v := item["@type"].(type) {
		case string:
			itemType = v
		case []interface{}:
			if len(v) > 0 {
				itemType, _ = v[0].(string)
			}
		}
		if validSchemaTypes[itemType] {
			return 100, nil
		}
	}

	return 50, []Recommendation{{
		Category:    "seo",
		Priority:    "low",
		Title:       "Improve Structured Data",
		Description: "Consider adding more specific schema types like Organization, Product, or Article for better search engine understanding.",
		Impact:      "low",
	}}
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
