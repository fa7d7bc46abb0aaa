package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"What restaurants are near me tonight?", "en"},
		{"Quiero comida mexicana cerca, por favor", "es"},
		{"Je veux manger avec mes amis ce soir", "fr"},
		{"Ich möchte heute essen, bitte", "de"},
		{"Voglio mangiare vicino, grazie", "it"},
		{"Eu quero comida perto, obrigado", "pt"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, ok := DetectLanguage(tt.text)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectLanguage_NoMatch(t *testing.T) {
	got, ok := DetectLanguage("sushi 42 ramen")
	assert.False(t, ok)
	assert.Equal(t, DefaultLanguage, got)

	got, ok = DetectLanguage("")
	assert.False(t, ok)
	assert.Equal(t, DefaultLanguage, got)
}

func TestDetectLanguage_IgnoresPunctuationAndCase(t *testing.T) {
	got, _ := DetectLanguage("GRACIAS!!! Donde... está?")
	assert.Equal(t, "es", got)
}
