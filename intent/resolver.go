package intent

import (
	"context"
	"strings"

	"github.com/zapflow/zapflow/classifier"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/logger"
	"go.uber.org/zap"
)

type Source string

const (
	SOURCE_SEMANTIC  Source = "semantic"
	SOURCE_EXACT     Source = "exact"
	SOURCE_HEURISTIC Source = "heuristic"
	SOURCE_FUZZY     Source = "fuzzy"
)

type Selection struct {
	CandidateId string
	Source      Source
	Confidence  float64
}

// Resolver applies the full resolution order: semantic classifier first when
// configured, then exact/heuristic phrase scoring, then the fuzzy fallback.
type Resolver struct {
	classifier classifier.Classifier
	cfg        config.IntentConfig
}

func NewResolver(cl classifier.Classifier, cfg config.IntentConfig) *Resolver {
	return &Resolver{classifier: cl, cfg: cfg}
}

func (r *Resolver) Resolve(ctx context.Context, message string, candidates []Candidate) *Selection {
	if len(candidates) == 0 || len(strings.TrimSpace(message)) == 0 {
		return nil
	}
	if r.classifier != nil {
		res := r.classifier.Classify(ctx, message, toClassifierCandidates(candidates))
		if res != nil {
			switch res.Status {
			case classifier.SELECTED:
				return &Selection{CandidateId: res.Id, Source: SOURCE_SEMANTIC, Confidence: res.Confidence}
			case classifier.NO_MATCH:
				if r.cfg.StrictMode {
					logger.Debug("classifier no_match in strict mode, suppressing local matching")
					return nil
				}
			}
		}
	}
	if m := BestMatch(message, candidates, r.cfg); m != nil {
		source := SOURCE_HEURISTIC
		confidence := m.Coverage
		if m.Exact {
			source = SOURCE_EXACT
			confidence = 1
		}
		return &Selection{CandidateId: m.CandidateId, Source: source, Confidence: confidence}
	}
	if m := BuildIndex(candidates).FindBest(message, r.cfg); m != nil {
		logger.Debug("fuzzy fallback matched",
			zap.String("candidate", m.CandidateId), zap.Float64("combined", m.Combined))
		return &Selection{CandidateId: m.CandidateId, Source: SOURCE_FUZZY, Confidence: m.Combined}
	}
	return nil
}

func toClassifierCandidates(candidates []Candidate) []classifier.Candidate {
	out := make([]classifier.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		sample := ""
		if len(cand.Phrases) > 0 {
			sample = strings.Join(cand.Phrases, "; ")
		}
		out = append(out, classifier.Candidate{Id: cand.Id, Label: cand.Label, Sample: sample})
	}
	return out
}
