// Package intent decides which flow should start for a free-text message and
// which outgoing edge a reply selects, using layered matching: exact phrase
// containment, heuristic token scoring and a fuzzy fallback.
package intent

import (
	"strings"

	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/text"
)

// Candidate is one selectable target: a keyword-triggered flow or an intent
// route on a node.
type Candidate struct {
	Id       string
	Label    string
	Phrases  []string
	Priority int
}

type Match struct {
	CandidateId string
	Phrase      string
	Exact       bool
	Score       float64
	Strong      int
	Coverage    float64
	Priority    int
}

// Better reports whether m outranks other. Exact beats fuzzy, then score,
// then strong-match count, then configured priority.
func (m Match) Better(other Match) bool {
	if m.Exact != other.Exact {
		return m.Exact
	}
	if m.Score != other.Score {
		return m.Score > other.Score
	}
	if m.Strong != other.Strong {
		return m.Strong > other.Strong
	}
	return m.Priority > other.Priority
}

type directionGroup struct {
	name    string
	roots   []string
	opposes string
}

// Direction groups veto matches whose intent points the opposite way even
// when nouns overlap ("quero vender" must not match "quero comprar").
var directionGroups = []directionGroup{
	{name: "buy", roots: []string{"compr", "adquir"}, opposes: "sell"},
	{name: "sell", roots: []string{"vend", "repass"}, opposes: "buy"},
}

func directionsOf(tokens []string) map[string]bool {
	found := map[string]bool{}
	for _, tok := range tokens {
		for _, g := range directionGroups {
			for _, root := range g.roots {
				if strings.HasPrefix(tok, root) {
					found[g.name] = true
				}
			}
		}
	}
	return found
}

func opposingDirection(name string) string {
	for _, g := range directionGroups {
		if g.name == name {
			return g.opposes
		}
	}
	return ""
}

// directionConflict reports whether the message anchors to a group opposing
// one of the phrase's groups without also anchoring to the phrase's own.
func directionConflict(phraseDirs, messageDirs map[string]bool) bool {
	for dir := range phraseDirs {
		opp := opposingDirection(dir)
		if opp != "" && messageDirs[opp] && !messageDirs[dir] {
			return true
		}
	}
	return false
}

func sharesDirection(phraseDirs, messageDirs map[string]bool) bool {
	for dir := range phraseDirs {
		if messageDirs[dir] {
			return true
		}
	}
	return false
}

// longCommonPrefix reports fuzzy stem agreement between two tokens: a shared
// prefix of 5+, or 4+ when the lengths differ by at most 2.
func longCommonPrefix(a, b string) bool {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	if n >= 5 {
		return true
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	return n >= 4 && diff <= 2
}

func containsWholePhrase(normalizedMessage, normalizedPhrase string) bool {
	if len(normalizedPhrase) == 0 {
		return false
	}
	return strings.Contains(" "+normalizedMessage+" ", " "+normalizedPhrase+" ")
}

// tokenOverlap counts strong (exact) and weak (shared stem prefix) matches of
// phrase tokens against message tokens.
func tokenOverlap(messageTokens, phraseTokens []string) (strong, weak int) {
	msgSet := map[string]bool{}
	for _, t := range messageTokens {
		msgSet[t] = true
	}
	for _, pt := range phraseTokens {
		if msgSet[pt] {
			strong++
			continue
		}
		for _, mt := range messageTokens {
			if longCommonPrefix(pt, mt) {
				weak++
				break
			}
		}
	}
	return strong, weak
}

// ScorePhraseMatch scores one candidate phrase against the message. The
// returned bool is false when the phrase does not match at all.
func ScorePhraseMatch(normalizedMessage string, messageTokens []string, phrase string, cfg config.IntentConfig) (Match, bool) {
	normalizedPhrase := text.Fold(phrase)
	if containsWholePhrase(normalizedMessage, normalizedPhrase) {
		words := len(strings.Fields(normalizedPhrase))
		return Match{Phrase: phrase, Exact: true, Score: 100 + float64(words), Strong: words, Coverage: 1}, true
	}
	phraseTokens := text.Tokenize(phrase)
	if len(phraseTokens) == 0 {
		return Match{}, false
	}
	phraseDirs := directionsOf(phraseTokens)
	messageDirs := directionsOf(messageTokens)
	if directionConflict(phraseDirs, messageDirs) {
		return Match{}, false
	}
	if len(phraseDirs) > 0 && !sharesDirection(phraseDirs, messageDirs) {
		return Match{}, false
	}
	strong, weak := tokenOverlap(messageTokens, phraseTokens)
	enough := strong >= 2 ||
		(len(phraseTokens) == 1 && strong >= 1) ||
		(strong >= 1 && weak >= 1) ||
		(weak >= 2 && len(phraseTokens) <= 3)
	if !enough {
		return Match{}, false
	}
	coverage := (float64(strong) + 0.7*float64(weak)) / float64(len(phraseTokens))
	unmatched := len(phraseTokens) - strong - weak
	minCoverage := cfg.MinCoverageTight
	if unmatched > 1 {
		minCoverage = cfg.MinCoverageLoose
	}
	if coverage < minCoverage {
		return Match{}, false
	}
	specificity := len(phraseTokens)
	if specificity > 5 {
		specificity = 5
	}
	score := coverage + float64(specificity)*0.12
	return Match{Phrase: phrase, Score: score, Strong: strong, Coverage: coverage}, true
}

// BestMatch runs the heuristic scorer across every phrase of every candidate
// and returns the winner, or nil when nothing clears the thresholds.
func BestMatch(message string, candidates []Candidate, cfg config.IntentConfig) *Match {
	normalizedMessage := text.Fold(message)
	messageTokens := text.Tokenize(message)
	var best *Match
	for _, cand := range candidates {
		for _, phrase := range cand.Phrases {
			m, ok := ScorePhraseMatch(normalizedMessage, messageTokens, phrase, cfg)
			if !ok {
				continue
			}
			m.CandidateId = cand.Id
			m.Priority = cand.Priority
			if best == nil || m.Better(*best) {
				copy := m
				best = &copy
			}
		}
	}
	return best
}
