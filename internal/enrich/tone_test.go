package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		desc     string
		category string
		hashtags []string
	}{
		{"contract with team", "Makar signs eight-year extension", "Avalanche defenseman", "contract", []string{"#HockeyNews", "#GoAvsGo"}},
		{"playoff", "Bruins clinch playoff spot", "", "playoff", []string{"#StanleyCup", "#NHLBruins"}},
		{"injury", "McDavid injured, will miss two weeks", "Oilers captain", "injury", []string{"#NHLInjury", "#LetsGoOilers"}},
		{"milestone", "Ovechkin sets goals record", "Capitals star", "milestone", []string{"#NHLMilestone", "#ALLCAPS"}},
		{"default category and league tag", "Weekly power rankings", "", "game_preview", []string{"#GameDay", "#NHL"}},
		{"whole word only", "Talking about the season", "", "game_preview", []string{"#GameDay", "#NHL"}},
		{"multi-word team", "Maple Leafs host Sabres tonight", "", "game_preview", []string{"#GameDay", "#LetsGoBuffalo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tone := Classify(tt.title, tt.desc)
			assert.Equal(t, tt.category, tone.Category)
			assert.Equal(t, tt.hashtags, tone.Hashtags)
			assert.NotEmpty(t, tone.Emoji)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	a := Classify("Bruins clinch playoff spot", "")
	b := Classify("Bruins clinch playoff spot", "")
	assert.Equal(t, a, b)
}
