package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/classifier"
	"github.com/zapflow/zapflow/config"
)

type stubClassifier struct {
	result *classifier.Result
	calls  int
}

func (s *stubClassifier) Classify(ctx context.Context, message string, candidates []classifier.Candidate) *classifier.Result {
	s.calls++
	return s.result
}

func TestResolve(t *testing.T) {
	candidates := []Candidate{
		{Id: "buy", Label: "Comprar", Phrases: []string{"quero comprar um carro"}},
		{Id: "sell", Label: "Vender", Phrases: []string{"quero vender meu carro"}},
	}

	for scenario, fn := range map[string]func(t *testing.T){
		"classifier verdict wins over local matching": func(t *testing.T) {
			cl := &stubClassifier{result: &classifier.Result{Status: classifier.SELECTED, Id: "buy", Confidence: 0.95}}
			sel := NewResolver(cl, config.DefaultIntent()).Resolve(context.Background(), "quero vender meu carro", candidates)
			require.NotNil(t, sel)
			require.Equal(t, "buy", sel.CandidateId)
			require.Equal(t, SOURCE_SEMANTIC, sel.Source)
		},
		"classifier no_match suppresses locals in strict mode": func(t *testing.T) {
			cfg := config.DefaultIntent()
			cfg.StrictMode = true
			cl := &stubClassifier{result: &classifier.Result{Status: classifier.NO_MATCH}}
			sel := NewResolver(cl, cfg).Resolve(context.Background(), "quero vender meu carro", candidates)
			require.Nil(t, sel)
		},
		"classifier no_match falls through outside strict mode": func(t *testing.T) {
			cl := &stubClassifier{result: &classifier.Result{Status: classifier.NO_MATCH}}
			sel := NewResolver(cl, config.DefaultIntent()).Resolve(context.Background(), "quero vender meu carro", candidates)
			require.NotNil(t, sel)
			require.Equal(t, "sell", sel.CandidateId)
			require.Equal(t, SOURCE_EXACT, sel.Source)
		},
		"classifier unavailable falls through": func(t *testing.T) {
			cl := &stubClassifier{result: nil}
			sel := NewResolver(cl, config.DefaultIntent()).Resolve(context.Background(), "quero vender meu carro", candidates)
			require.NotNil(t, sel)
			require.Equal(t, "sell", sel.CandidateId)
		},
		"no classifier configured": func(t *testing.T) {
			sel := NewResolver(nil, config.DefaultIntent()).Resolve(context.Background(), "Que horas posso ir?", []Candidate{
				{Id: "hours", Phrases: []string{"qual horario eu posso ir"}},
			})
			require.NotNil(t, sel)
			require.Equal(t, "hours", sel.CandidateId)
			require.Equal(t, SOURCE_HEURISTIC, sel.Source)
		},
		"fuzzy fallback after heuristics miss": func(t *testing.T) {
			sel := NewResolver(nil, config.DefaultIntent()).Resolve(context.Background(), "qero agendar", []Candidate{
				{Id: "visit", Phrases: []string{"quero agendar"}},
			})
			require.NotNil(t, sel)
			require.Equal(t, "visit", sel.CandidateId)
			require.Equal(t, SOURCE_FUZZY, sel.Source)
		},
		"empty message resolves to nothing": func(t *testing.T) {
			cl := &stubClassifier{result: &classifier.Result{Status: classifier.SELECTED, Id: "buy"}}
			r := NewResolver(cl, config.DefaultIntent())
			require.Nil(t, r.Resolve(context.Background(), "  ", candidates))
			require.Zero(t, cl.calls)
		},
		"no candidates resolves to nothing": func(t *testing.T) {
			sel := NewResolver(nil, config.DefaultIntent()).Resolve(context.Background(), "quero vender", nil)
			require.Nil(t, sel)
		},
	} {
		t.Run(scenario, fn)
	}
}
