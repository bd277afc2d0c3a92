package assistant

import (
	"math"
	"testing"
)

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"¿Dónde está mi pedido?", 0},
		{"Gracias, excelente servicio", 1},
		{"Esto no funciona, es terrible", -1},
		{"Gracias pero hay un problema", 0},
		{"gracias, bien, pero lento", 1.0 / 3},
		{"muy bien, gracias, pero lento", 0.5},
		{"Muy mal, horrible", -1},
		{"todo normal", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := AnalyzeSentiment(tt.text); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AnalyzeSentiment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentimentLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, SentimentVeryPositive},
		{0.3, SentimentPositive},
		{0.1, SentimentNeutral},
		{0, SentimentNeutral},
		{-0.1, SentimentNeutral},
		{-0.3, SentimentNegative},
		{-0.6, SentimentVeryNegative},
	}
	for _, tt := range tests {
		if got := SentimentLabel(tt.score); got != tt.want {
			t.Errorf("SentimentLabel(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
