package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/auraseo/aura_server/internal/seo"
)

// 发送给模型的正文截断长度
const maxContextChars = 2000

// AEOResult AEO 分析结果
type AEOResult struct {
	Score            float64                `json:"score"` // 0-100
	BrandRecognition map[string]interface{} `json:"brand_recognition"`
	Model            string                 `json:"llm_model"`
	Recommendations  []seo.Recommendation   `json:"recommendations"`
}

// brandAnswers 模型返回的结构化回答
type brandAnswers struct {
	WhatItDoes        string  `json:"what_it_does"`
	ProductsServices  string  `json:"products_services"`
	TargetAudience    string  `json:"target_audience"`
	UniqueValue       string  `json:"unique_value"`
	ClarityScore      float64 `json:"clarity_score"`
	OverallImpression string  `json:"overall_impression"`
}

const aeoSystemPrompt = "You are an expert AI assistant evaluating website quality and clarity " +
	"for search engine and AI engine optimization (AEO). Your goal is to assess " +
	"how well an AI assistant like yourself would understand and recommend this website. " +
	"Always respond with valid JSON only, no additional text."

// AnalyzeAEO 评估页面的品牌可识别度并产出 AEO 分数
func (c *Client) AnalyzeAEO(ctx context.Context, url, pageText string, metaTags map[string]string) (*AEOResult, error) {
	log.Printf("Starting AEO analysis for %s", url)

	prompt := buildAEOPrompt(url, prepareContext(pageText, metaTags))

	text, err := c.Complete(ctx, c.model, aeoSystemPrompt, prompt, 2000, 0.3)
	if err != nil {
		return nil, fmt.Errorf("aeo analysis failed for %s: %w", url, err)
	}

	cleaned := extractJSON(text)

	var answers brandAnswers
	if err := json.Unmarshal([]byte(cleaned), &answers); err != nil {
		return nil, fmt.Errorf("invalid json from llm for %s: %w", url, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		raw = map[string]interface{}{}
	}

	score := calculateAEOScore(&answers)
	log.Printf("AEO analysis complete for %s, score: %.2f", url, score)

	return &AEOResult{
		Score:            score,
		BrandRecognition: raw,
		Model:            c.model,
		Recommendations:  aeoRecommendations(&answers),
	}, nil
}

func prepareContext(pageText string, metaTags map[string]string) string {
	body := clip(pageText, maxContextChars)
	body = strings.Join(strings.Fields(body), " ")

	return fmt.Sprintf("Title: %s\nDescription: %s\n\nContent:\n%s",
		metaTags["title"], metaTags["description"], body)
}

func buildAEOPrompt(url, context string) string {
	return fmt.Sprintf(`You are analyzing a website for AI Engine Optimization (AEO).

Website URL: %s

Website Content:
%s

Please answer the following questions as if you were an AI assistant responding to a user query about this website:

1. What does this website do? (Provide a clear, concise answer in 1-2 sentences)
2. What products or services does it offer? (Be specific)
3. Who is the target audience? (Be specific about demographics or user types)
4. What makes this brand unique or notable? (Identify unique value propositions)
5. Rate the clarity of the website's purpose on a scale of 1-10, where:
   - 1-3: Very unclear, confusing
   - 4-6: Somewhat clear but needs improvement
   - 7-8: Clear and understandable
   - 9-10: Exceptionally clear and compelling

6. Provide an overall impression of how well this website would be understood and recommended by an AI assistant.

Respond in JSON format with the following structure:
{
    "what_it_does": "Clear description of what the website does",
    "products_services": "Specific products or services offered",
    "target_audience": "Specific target audience",
    "unique_value": "What makes this brand unique",
    "clarity_score": 8,
    "overall_impression": "Your overall assessment"
}

Be honest and objective. If something is unclear or missing, say so.`, url, context)
}

// calculateAEOScore 清晰度占 70%，四个字段的完整度占 30%，负面印象扣分
func calculateAEOScore(answers *brandAnswers) float64 {
	base := answers.ClarityScore / 10 * 70

	var completeness float64
	for _, field := range []string{
		answers.WhatItDoes,
		answers.ProductsServices,
		answers.TargetAudience,
		answers.UniqueValue,
	} {
		if len(field) > 20 {
			completeness += 7.5
		}
	}

	var penalty float64
	impression := strings.ToLower(answers.OverallImpression)
	if containsAny(impression, "unclear", "confusing", "vague", "difficult") {
		penalty = 10
	} else if containsAny(impression, "missing", "lacking", "insufficient") {
		penalty = 5
	}

	final := base + completeness - penalty
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	return seo.Round2(final)
}

func aeoRecommendations(answers *brandAnswers) []seo.Recommendation {
	var recs []seo.Recommendation

	if answers.ClarityScore < 7 {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "high",
			Title:       "Improve Content Clarity",
			Description: fmt.Sprintf("Your website purpose scored %.0f/10 for clarity. AI engines struggle to understand what you do. Add a clear value proposition and product descriptions in the first paragraph of your homepage.", answers.ClarityScore),
			Impact:      "high",
		})
	}

	if len(answers.WhatItDoes) < 30 || strings.Contains(strings.ToLower(answers.WhatItDoes), "unclear") {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "critical",
			Title:       "Define Your Value Proposition",
			Description: `AI engines cannot clearly determine what your website does. Add a prominent, clear headline that explains your core offering in simple terms. Example: "We help X do Y" or "The leading platform for Z".`,
			Impact:      "critical",
		})
	}

	uniqueValue := strings.ToLower(answers.UniqueValue)
	if len(answers.UniqueValue) < 20 || strings.Contains(uniqueValue, "unclear") || strings.Contains(uniqueValue, "not clear") {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "medium",
			Title:       "Highlight Unique Selling Points",
			Description: "Your unique differentiators are not clear to AI engines. Add a section highlighting what sets you apart from competitors. This helps AI assistants recommend you over alternatives.",
			Impact:      "medium",
		})
	}

	if len(answers.TargetAudience) < 20 || strings.Contains(strings.ToLower(answers.TargetAudience), "unclear") {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "medium",
			Title:       "Clarify Target Audience",
			Description: `Make it clearer who your product/service is for. AI engines need to understand your target audience to recommend you to the right users. Add phrases like "Perfect for..." or "Designed for..." in your content.`,
			Impact:      "medium",
		})
	}

	if len(answers.ProductsServices) < 30 {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "high",
			Title:       "Detail Your Products/Services",
			Description: "Your products or services are not clearly described. Add detailed descriptions of what you offer, including key features and benefits. This helps AI engines match user queries to your offerings.",
			Impact:      "high",
		})
	}

	if containsAny(strings.ToLower(answers.OverallImpression), "poor", "difficult", "confusing", "very unclear") {
		recs = append(recs, seo.Recommendation{
			Category:    "aeo",
			Priority:    "critical",
			Title:       "Comprehensive Content Overhaul Needed",
			Description: "AI engines find your website difficult to understand and recommend. Consider a content audit focusing on: (1) Clear headline with value proposition, (2) Simple language explaining what you do, (3) Prominent product/service descriptions, (4) Customer benefits over features.",
			Impact:      "critical",
		})
	}

	return recs
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
