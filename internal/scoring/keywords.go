package scoring

import "strings"

var (
	highRelevance = []string{
		"machine learning engineer", "ml engineer", "ai engineer", "deep learning engineer",
		"data scientist", "research scientist", "applied scientist", "nlp engineer",
		"computer vision engineer", "mlops engineer", "ml platform", "ai researcher",
		"llm engineer",
	}
	mediumRelevance = []string{
		"data engineer", "ml ", " ml", " ai ", "ai ", "analytics engineer",
		"research engineer", "quantitative", "machine learning", "artificial intelligence",
		"neural network", "deep learning",
	}
	lowRelevance = []string{
		"data analyst", "business intelligence", "python developer", "backend engineer",
		"software engineer", "full stack",
	}
)

type tier struct {
	score    int
	keywords []string
}

// tiers are checked in order and the first hit wins.
var tiers = []tier{
	{score: 9, keywords: highRelevance},
	{score: 7, keywords: mediumRelevance},
	{score: 5, keywords: lowRelevance},
}

const noTierScore = 3

// KeywordScore classifies lowercased text by the keyword tiers.
func KeywordScore(text string) int {
	for _, t := range tiers {
		for _, kw := range t.keywords {
			if strings.Contains(text, kw) {
				return t.score
			}
		}
	}
	return noTierScore
}
