package news

import "strings"

// Score is a sentiment verdict on a piece of text or on the market as a
// whole.
type Score struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

var positiveKeywords = []string{"bullish", "surge", "rise", "gain", "success", "growth"}
var negativeKeywords = []string{"bearish", "drop", "fall", "crash", "loss", "decline"}

// Neutral is the fallback verdict when nothing better is known.
func Neutral() Score {
	return Score{Score: 0.5, Label: "Neutral"}
}

// AnalyzeText runs the keyword sentiment heuristic over text.
func AnalyzeText(text string) Score {
	text = strings.ToLower(text)

	score := 0.5
	if containsAny(text, positiveKeywords) {
		score = 0.7
	} else if containsAny(text, negativeKeywords) {
		score = 0.3
	}

	return ScoreOf(score)
}

// ScoreOf labels a raw score: above 0.6 positive, below 0.4 negative.
func ScoreOf(score float64) Score {
	label := "Neutral"
	if score > 0.6 {
		label = "Positive"
	} else if score < 0.4 {
		label = "Negative"
	}

	return Score{Score: score, Label: label}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
