package intent

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/text"
)

type indexEntry struct {
	candidate        Candidate
	normalizedPhrase string
	phraseTokens     []string
}

// Index is a searchable set of (candidate, phrase) pairs used by the fuzzy
// fallback path when neither exact containment nor token scoring matched.
type Index struct {
	entries []indexEntry
}

func BuildIndex(candidates []Candidate) *Index {
	idx := &Index{}
	for _, cand := range candidates {
		for _, phrase := range cand.Phrases {
			normalized := text.Fold(phrase)
			if len(normalized) == 0 {
				continue
			}
			idx.entries = append(idx.entries, indexEntry{
				candidate:        cand,
				normalizedPhrase: normalized,
				phraseTokens:     text.Tokenize(phrase),
			})
		}
	}
	return idx
}

type FuzzyMatch struct {
	CandidateId string
	Phrase      string
	Confidence  float64
	Coverage    float64
	Combined    float64
	Priority    int
}

func (m FuzzyMatch) better(other FuzzyMatch) bool {
	if m.Combined != other.Combined {
		return m.Combined > other.Combined
	}
	if m.Coverage != other.Coverage {
		return m.Coverage > other.Coverage
	}
	if m.Confidence != other.Confidence {
		return m.Confidence > other.Confidence
	}
	return m.Priority > other.Priority
}

// FindBest runs approximate string matching of the message against every
// indexed phrase, blending edit-distance confidence with token coverage.
func (idx *Index) FindBest(message string, cfg config.IntentConfig) *FuzzyMatch {
	normalizedMessage := text.Fold(message)
	if len(normalizedMessage) == 0 {
		return nil
	}
	messageTokens := text.Tokenize(message)
	messageDirs := directionsOf(messageTokens)
	var best *FuzzyMatch
	for _, entry := range idx.entries {
		dist := fuzzy.LevenshteinDistance(normalizedMessage, entry.normalizedPhrase)
		maxLen := len(normalizedMessage)
		if len(entry.normalizedPhrase) > maxLen {
			maxLen = len(entry.normalizedPhrase)
		}
		if maxLen == 0 {
			continue
		}
		normDist := float64(dist) / float64(maxLen)
		if normDist > cfg.FuzzyDistance {
			continue
		}
		confidence := 1 - normDist
		phraseDirs := directionsOf(entry.phraseTokens)
		if directionConflict(phraseDirs, messageDirs) {
			continue
		}
		if len(phraseDirs) > 0 && !sharesDirection(phraseDirs, messageDirs) {
			continue
		}
		coverage := 0.0
		if len(entry.phraseTokens) > 0 {
			strong, weak := tokenOverlap(messageTokens, entry.phraseTokens)
			coverage = (float64(strong) + 0.7*float64(weak)) / float64(len(entry.phraseTokens))
		}
		if coverage < cfg.FuzzyMinCoverage && confidence < 0.9 {
			continue
		}
		combined := cfg.FuzzyWeight*confidence + cfg.CoverageWeight*coverage +
			0.01*float64(entry.candidate.Priority)
		if combined < cfg.FuzzyMinCombined {
			continue
		}
		m := FuzzyMatch{
			CandidateId: entry.candidate.Id,
			Phrase:      entry.normalizedPhrase,
			Confidence:  confidence,
			Coverage:    coverage,
			Combined:    combined,
			Priority:    entry.candidate.Priority,
		}
		if best == nil || m.better(*best) {
			copy := m
			best = &copy
		}
	}
	return best
}
