package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

var ErrNoCompetitors = errors.New("no competitor data provided")

// CompetitorSummary 汇总单个竞品的信息，供批量分析使用
type CompetitorSummary struct {
	URL          string   `json:"url"`
	Label        string   `json:"label"`
	SEOScore     float64  `json:"seo_score"`
	AEOScore     float64  `json:"aeo_score"`
	SEORank      int      `json:"seo_rank"`
	AEORank      int      `json:"aeo_rank"`
	Issues       []string `json:"issues"`
	Strengths    []string `json:"strengths"`
	BrandSummary string   `json:"brand_summary"`
}

// LandscapeResult 一次批量调用产出的竞争格局分析
type LandscapeResult struct {
	Insights      string        `json:"insights"`
	Opportunities []string      `json:"opportunities"`
	Threats       []string      `json:"threats"`
	OverallWinner WinnerVerdict `json:"overall_winner"`
}

// WinnerVerdict 综合胜出者及理由
type WinnerVerdict struct {
	URL    string `json:"url"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

const landscapeSystemPrompt = "You are a competitive analysis expert specializing in SEO and AI Engine " +
	"Optimization (AEO). Your goal is to provide actionable insights by comparing " +
	"multiple websites and identifying opportunities and threats. " +
	"Always respond with valid JSON only, no additional text."

// AnalyzeLandscape 单次调用分析整个竞争格局，而非逐站调用
func (c *Client) AnalyzeLandscape(ctx context.Context, competitors []CompetitorSummary) (*LandscapeResult, error) {
	if len(competitors) == 0 {
		return nil, ErrNoCompetitors
	}

	log.Printf("Starting batch landscape analysis for %d competitors", len(competitors))

	text, err := c.Complete(ctx, c.batchModel, landscapeSystemPrompt, buildLandscapePrompt(competitors), 3000, 0.5)
	if err != nil {
		return nil, fmt.Errorf("landscape analysis failed: %w", err)
	}

	var result LandscapeResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return nil, fmt.Errorf("invalid json from llm: %w", err)
	}

	log.Printf("Batch landscape analysis complete: %d opportunities, %d threats",
		len(result.Opportunities), len(result.Threats))

	return &result, nil
}

func buildLandscapePrompt(competitors []CompetitorSummary) string {
	summaries := make([]string, 0, len(competitors))
	for i, comp := range competitors {
		label := comp.Label
		if label == "" {
			label = fmt.Sprintf("Competitor %d", i+1)
		}
		brand := comp.BrandSummary
		if brand == "" {
			brand = "Not available"
		}
		brand = clip(brand, 200)

		summaries = append(summaries, strings.TrimSpace(fmt.Sprintf(`%s (%s)
  - SEO Score: %.1f/100 (Rank #%d)
  - AEO Score: %.1f/100 (Rank #%d)
  - Description: %s

  Strengths:
%s

  Weaknesses:
%s`,
			label, comp.URL,
			comp.SEOScore, comp.SEORank,
			comp.AEOScore, comp.AEORank,
			brand,
			formatList(comp.Strengths, 5),
			formatList(comp.Issues, 3))))
	}

	divider := strings.Repeat("=", 80)

	return fmt.Sprintf(`You are analyzing a competitive landscape of %d websites for SEO and AEO optimization.

COMPETITORS:
%s
%s
%s

Please provide a comprehensive competitive analysis with the following:

1. **Competitive Landscape Overview** (3-5 sentences):
   - Summarize the overall competitive dynamics
   - Identify any clear patterns (e.g., "All competitors lack structured data")
   - Note any standout performers and why

2. **Top 5 Opportunities for Improvement**:
   - Actionable opportunities based on competitive gaps
   - Focus on areas where multiple competitors are weak
   - Prioritize high-impact, achievable improvements
   - Format: Clear, specific actions (e.g., "Add structured data - only 1/3 competitors have it")

3. **Top 3 Competitive Threats**:
   - What are the strongest competitors doing well?
   - What advantages do they have?
   - What risks do weaker competitors face?
   - Format: Specific competitive advantages to watch

4. **Overall Winner**:
   - Which competitor performs best overall?
   - Consider both SEO and AEO scores
   - Provide specific reasons why they lead

Respond in JSON format:
{
    "insights": "3-5 sentence competitive landscape overview",
    "opportunities": [
        "Specific opportunity 1",
        "Specific opportunity 2",
        "Specific opportunity 3",
        "Specific opportunity 4",
        "Specific opportunity 5"
    ],
    "threats": [
        "Specific competitive threat 1",
        "Specific competitive threat 2",
        "Specific competitive threat 3"
    ],
    "overall_winner": {
        "url": "winning competitor URL",
        "label": "competitor label",
        "reason": "1-2 sentence explanation of why they win"
    }
}

Be specific, actionable, and data-driven. Focus on insights that help improve SEO/AEO performance.`,
		len(competitors), divider, strings.Join(summaries, "\n"), divider)
}

func formatList(items []string, max int) string {
	if len(items) == 0 {
		return "  - None identified"
	}
	if len(items) > max {
		items = items[:max]
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "  - "+clip(item, 150))
	}
	return strings.Join(lines, "\n")
}
