package assistant

import "strings"

// Sentiment word lists. Phrases match on word boundaries.
var (
	PositiveWords = []string{
		"gracias", "excelente", "perfecto", "genial", "bueno", "bien",
		"feliz", "contento", "satisfecho", "maravilloso", "increíble",
		"ayuda", "útil", "claro", "entiendo", "super", "fantástico",
	}
	NegativeWords = []string{
		"mal", "problema", "error", "no funciona", "terrible", "horrible",
		"molesto", "frustrado", "enojado", "decepcionado", "lento",
		"no sirve", "pesimo", "pésimo", "inaceptable", "no entiendo", "confundido",
	}
	Intensifiers = []string{"muy", "demasiado", "extremadamente", "super", "bastante"}
)

// Sentiment labels.
const (
	SentimentVeryPositive = "muy_positivo"
	SentimentPositive     = "positivo"
	SentimentNeutral      = "neutral"
	SentimentNegative     = "negativo"
	SentimentVeryNegative = "muy_negativo"
)

// AnalyzeSentiment scores text between -1 (very negative) and 1 (very
// positive) from keyword counts. An intensifier scales the score by 1.5
// before clamping. Text without sentiment words scores 0.
func AnalyzeSentiment(text string) float64 {
	words := normalizedWords(text)
	positive := countPhrases(words, PositiveWords)
	negative := countPhrases(words, NegativeWords)
	if positive+negative == 0 {
		return 0
	}
	score := float64(positive-negative) / float64(positive+negative)
	if countPhrases(words, Intensifiers) > 0 {
		score *= 1.5
	}
	return max(-1, min(1, score))
}

// SentimentLabel names a sentiment score.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.5:
		return SentimentVeryPositive
	case score > 0.1:
		return SentimentPositive
	case score < -0.5:
		return SentimentVeryNegative
	case score < -0.1:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// countPhrases counts the phrases present in words, a normalizedWords string.
func countPhrases(words string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(words, " "+p+" ") {
			n++
		}
	}
	return n
}
