package compare

import (
	"math"
	"sort"
)

// Entry 参与排名的单个站点
type Entry struct {
	URL        string
	Label      string
	OrderIndex int // 提交时的顺序，用于打破同分
	Score      float64
}

// Ranking 单条排名记录
type Ranking struct {
	URL              string  `json:"url"`
	Label            string  `json:"label"`
	Score            float64 `json:"score"`
	Rank             int     `json:"rank"` // 从 1 开始
	DeltaFromLeader  float64 `json:"delta_from_leader"`
	DeltaFromAverage float64 `json:"delta_from_average"`
}

// Leader 某一维度的领先者
type Leader struct {
	URL   string  `json:"url"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Axis 一个评分维度的完整对比结果
type Axis struct {
	Rankings []Ranking `json:"rankings"`
	Average  float64   `json:"average"`
	Leader   *Leader   `json:"leader"`
}

// BuildAxis 按分数降序排名，同分按提交顺序靠前者优先
func BuildAxis(entries []Entry) Axis {
	if len(entries) == 0 {
		return Axis{Rankings: []Ranking{}}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	var sum float64
	for _, e := range sorted {
		sum += round2(e.Score)
	}
	average := sum / float64(len(sorted))

	leaderScore := round2(sorted[0].Score)
	rankings := make([]Ranking, 0, len(sorted))
	for i, e := range sorted {
		score := round2(e.Score)
		rankings = append(rankings, Ranking{
			URL:              e.URL,
			Label:            e.Label,
			Score:            score,
			Rank:             i + 1,
			DeltaFromLeader:  round2(score - leaderScore),
			DeltaFromAverage: round2(score - average),
		})
	}

	return Axis{
		Rankings: rankings,
		Average:  round2(average),
		Leader: &Leader{
			URL:   rankings[0].URL,
			Label: rankings[0].Label,
			Score: rankings[0].Score,
		},
	}
}

// ToMap 转成入库用的 JSON 结构
func (a Axis) ToMap() map[string]interface{} {
	rankings := make([]interface{}, 0, len(a.Rankings))
	for _, r := range a.Rankings {
		rankings = append(rankings, map[string]interface{}{
			"url":                r.URL,
			"label":              r.Label,
			"score":              r.Score,
			"rank":               r.Rank,
			"delta_from_leader":  r.DeltaFromLeader,
			"delta_from_average": r.DeltaFromAverage,
		})
	}
	m := map[string]interface{}{
		"rankings": rankings,
		"average":  a.Average,
	}
	if a.Leader != nil {
		m["leader"] = map[string]interface{}{
			"url":   a.Leader.URL,
			"label": a.Leader.Label,
			"score": a.Leader.Score,
		}
	}
	return m
}

// MarketLeader 汇总两个维度的领先者
func MarketLeader(seoAxis, aeoAxis Axis) map[string]interface{} {
	m := make(map[string]interface{}, 2)
	if seoAxis.Leader != nil {
		m["seo"] = map[string]interface{}{
			"url":   seoAxis.Leader.URL,
			"label": seoAxis.Leader.Label,
			"score": seoAxis.Leader.Score,
		}
	}
	if aeoAxis.Leader != nil {
		m["aeo"] = map[string]interface{}{
			"url":   aeoAxis.Leader.URL,
			"label": aeoAxis.Leader.Label,
			"score": aeoAxis.Leader.Score,
		}
	}
	return m
}

// MarketAverage 汇总两个维度的市场均分
func MarketAverage(seoAxis, aeoAxis Axis) map[string]interface{} {
	return map[string]interface{}{
		"seo": seoAxis.Average,
		"aeo": aeoAxis.Average,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
