package enrich

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Tone steers the caption prompt.
type Tone struct {
	Category string
	Emoji    string
	Hashtags []string
}

type category struct {
	name     string
	keywords []string
	emojis   []string
	hashtag  string
}

// Checked in order; the first category with a matching keyword wins.
var categories = []category{
	{"contract", []string{"signs", "contract", "deal", "extension", "million", "$"}, []string{"💰", "✍️", "📝"}, "#HockeyNews"},
	{"playoff", []string{"playoff", "playoffs", "stanley cup", "postseason", "elimination", "clinch", "clinches"}, []string{"🏆", "🔥", "💪"}, "#StanleyCup"},
	{"injury", []string{"injury", "injured", "out", "return", "recovery", "miss"}, []string{"🏥", "⚕️", "🤕"}, "#NHLInjury"},
	{"milestone", []string{"record", "milestone", "historic", "career", "youngest", "oldest", "first", "1st"}, []string{"🎯", "🏅", "📊"}, "#NHLMilestone"},
	{"game_preview", []string{"tonight", "face", "host", "visit", "matchup", "vs", "against", "seek", "aim", "go for"}, []string{"🏒", "⚔️", "🎮"}, "#GameDay"},
}

const defaultCategory = "game_preview"

var teamHashtags = []struct{ team, hashtag string }{
	{"avalanche", "#GoAvsGo"},
	{"bruins", "#NHLBruins"},
	{"sabres", "#LetsGoBuffalo"},
	{"hurricanes", "#LetsGoCanes"},
	{"blackhawks", "#Blackhawks"},
	{"blue jackets", "#CBJ"},
	{"stars", "#TexasHockey"},
	{"red wings", "#LGRW"},
	{"oilers", "#LetsGoOilers"},
	{"panthers", "#TimeToHunt"},
	{"kings", "#GoKingsGo"},
	{"wild", "#mnwild"},
	{"canadiens", "#GoHabsGo"},
	{"predators", "#Preds"},
	{"devils", "#NJDevils"},
	{"islanders", "#Isles"},
	{"rangers", "#NYR"},
	{"senators", "#GoSensGo"},
	{"flyers", "#BringItToBroad"},
	{"penguins", "#LetsGoPens"},
	{"sharks", "#SJSharks"},
	{"kraken", "#SeaKraken"},
	{"blues", "#STLBlues"},
	{"lightning", "#GoBolts"},
	{"maple leafs", "#LeafsForever"},
	{"canucks", "#Canucks"},
	{"golden knights", "#VegasBorn"},
	{"capitals", "#ALLCAPS"},
	{"jets", "#GoJetsGo"},
	{"utah", "#UtahHC"},
	{"flames", "#CofRed"},
	{"ducks", "#FlyTogether"},
}

// Classify picks a category, emoji and at most two hashtags from keywords in
// the title and description. The same input always yields the same tone.
func Classify(title, description string) Tone {
	content := strings.ToLower(title + " " + description)
	words := wordSet(content)

	selected := categoryByName(defaultCategory)
	for _, c := range categories {
		if matchesAny(content, words, c.keywords) {
			selected = c
			break
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	emoji := selected.emojis[int(h.Sum32()%uint32(len(selected.emojis)))]

	hashtags := []string{selected.hashtag}
	for _, t := range teamHashtags {
		if matchesAny(content, words, []string{t.team}) {
			hashtags = append(hashtags, t.hashtag)
			break
		}
	}
	if len(hashtags) == 1 {
		hashtags = append(hashtags, "#NHL")
	}

	return Tone{
		Category: selected.name,
		Emoji:    emoji,
		Hashtags: hashtags,
	}
}

func categoryByName(name string) category {
	for _, c := range categories {
		if c.name == name {
			return c
		}
	}
	return categories[0]
}

// matchesAny matches single-word keywords against whole words and phrases or
// symbols against the raw text.
func matchesAny(content string, words map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsFunc(kw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
			if strings.Contains(content, kw) {
				return true
			}
			continue
		}
		if words[kw] {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
