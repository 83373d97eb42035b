package analyzer

import (
	"sort"
	"strings"
)

// Analysis modes (closed enumeration, mirrored by the analyze_text tool schema).
const (
	ModeFull      = "full"
	ModeStructure = "structure"
	ModeStyle     = "style"
)

// Structure is the five-part breakdown of a draft.
type Structure struct {
	Hook       string `json:"hook"`
	Setup      string `json:"setup"`
	Conflict   string `json:"conflict"`
	Insight    string `json:"insight"`
	Conclusion string `json:"conclusion"`
}

// Analysis is the full structural and qualitative report for a draft.
type Analysis struct {
	Structure   Structure `json:"structure"`
	Topics      []string  `json:"topics"`
	Strengths   []string  `json:"strengths"`
	Weaknesses  []string  `json:"weaknesses"`
	Suggestions []string  `json:"suggestions"`
}

// Analyzer produces a structural breakdown of a piece of writing. The
// heuristic implementation below is a placeholder; callers must not treat
// its exact output as a long-term contract.
type Analyzer interface {
	Analyze(text string, mode string) (*Analysis, error)
}

// HeuristicAnalyzer slices the draft by position and tags topics by keyword.
// It stands in for a real analyzer behind the same interface.
type HeuristicAnalyzer struct{}

func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

var _ Analyzer = &HeuristicAnalyzer{}

// Positional section boundaries, as fractions of the text length.
var sectionBounds = []float64{0.10, 0.30, 0.60, 0.85}

// topicLexicon maps topic tags to the keywords that imply them.
var topicLexicon = map[string][]string{
	"identity":   {"identity", "who i am", "myself", "heritage", "culture"},
	"growth":     {"grow", "learned", "change", "became", "realized"},
	"ambition":   {"ambition", "goal", "dream", "aspire", "future"},
	"community":  {"community", "family", "team", "together", "belong"},
	"challenge":  {"challenge", "struggle", "difficult", "obstacle", "failure"},
	"curiosity":  {"curious", "wonder", "question", "explore", "discover"},
	"resilience": {"resilience", "persever", "overcame", "kept going", "despite"},
}

func (a *HeuristicAnalyzer) Analyze(text string, mode string) (*Analysis, error) {
	trimmed := strings.TrimSpace(text)

	analysis := &Analysis{
		Structure: sliceStructure(trimmed),
		Topics:    detectTopics(trimmed),
	}

	words := len(strings.Fields(trimmed))
	sentences := countSentences(trimmed)

	// Qualitative heuristics. Placeholder quality on purpose: each rule is
	// a cheap surface signal, not genuine analysis.
	if strings.Contains(strings.ToLower(firstSentence(trimmed)), "i ") || strings.HasPrefix(strings.ToLower(trimmed), "i ") {
		analysis.Strengths = append(analysis.Strengths, "Opens in first person, which keeps the narrative voice personal")
	}
	if words >= 300 {
		analysis.Strengths = append(analysis.Strengths, "Substantial length gives the draft room to develop its arc")
	}
	if len(analysis.Strengths) == 0 {
		analysis.Strengths = append(analysis.Strengths, "The draft commits to a single continuous narrative")
	}

	if sentences > 0 && words/sentences > 30 {
		analysis.Weaknesses = append(analysis.Weaknesses, "Average sentence length is high; long sentences can bury the point")
	}
	if words < 150 {
		analysis.Weaknesses = append(analysis.Weaknesses, "The draft is short; key moments may be underdeveloped")
	}
	if len(analysis.Topics) == 0 {
		analysis.Weaknesses = append(analysis.Weaknesses, "No clear thematic anchor surfaced from the text")
	}
	if len(analysis.Weaknesses) == 0 {
		analysis.Weaknesses = append(analysis.Weaknesses, "The stakes of the conflict section could be made more explicit")
	}

	switch mode {
	case ModeStructure:
		analysis.Suggestions = append(analysis.Suggestions,
			"Check that the hook raises the question the insight section answers",
			"Tighten the setup so the conflict arrives earlier")
	case ModeStyle:
		analysis.Suggestions = append(analysis.Suggestions,
			"Vary sentence length to control pacing",
			"Replace abstract claims with one concrete sensory detail each")
	default:
		analysis.Suggestions = append(analysis.Suggestions,
			"Tighten the setup so the conflict arrives earlier",
			"End the conclusion on an image rather than a summary")
	}

	return analysis, nil
}

// sliceStructure cuts the text into the five positional sections. Sections
// degrade to empty strings for very short inputs rather than erroring. Cuts
// are made on rune boundaries so multi-byte text stays valid UTF-8.
func sliceStructure(text string) Structure {
	runes := []rune(text)
	n := len(runes)
	cut := func(lo, hi float64) string {
		start := int(float64(n) * lo)
		end := int(float64(n) * hi)
		if start > n {
			start = n
		}
		if end > n {
			end = n
		}
		return strings.TrimSpace(string(runes[start:end]))
	}

	return Structure{
		Hook:       cut(0, sectionBounds[0]),
		Setup:      cut(sectionBounds[0], sectionBounds[1]),
		Conflict:   cut(sectionBounds[1], sectionBounds[2]),
		Insight:    cut(sectionBounds[2], sectionBounds[3]),
		Conclusion: cut(sectionBounds[3], 1),
	}
}

func detectTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for topic, keywords := range topicLexicon {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		// Always hand the model at least one tag to anchor its follow-up
		topics = append(topics, "general")
	}
	sort.Strings(topics)
	return topics
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	return count
}

func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return text[:i+1]
		}
	}
	return text
}
