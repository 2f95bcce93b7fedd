package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/config"
)

func TestFuzzyFindBest(t *testing.T) {
	cfg := config.DefaultIntent()
	idx := BuildIndex([]Candidate{
		{Id: "buy", Label: "Comprar", Phrases: []string{"quero comprar um carro"}},
		{Id: "visit", Label: "Visita", Phrases: []string{"quero agendar uma visita"}},
	})

	for scenario, fn := range map[string]func(t *testing.T){
		"small typo still matches": func(t *testing.T) {
			m := idx.FindBest("quero comprar um caro", cfg)
			require.NotNil(t, m)
			require.Equal(t, "buy", m.CandidateId)
			require.Greater(t, m.Confidence, 0.9)
			require.GreaterOrEqual(t, m.Combined, cfg.FuzzyMinCombined)
		},
		"typo in the first word": func(t *testing.T) {
			m := idx.FindBest("qero agendar uma visita", cfg)
			require.NotNil(t, m)
			require.Equal(t, "visit", m.CandidateId)
		},
		"distant message does not match": func(t *testing.T) {
			require.Nil(t, idx.FindBest("financiamento disponivel?", cfg))
		},
		"opposite direction never matches": func(t *testing.T) {
			require.Nil(t, idx.FindBest("quero vender um carro", cfg))
		},
		"empty message": func(t *testing.T) {
			require.Nil(t, idx.FindBest("   ", cfg))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestBuildIndexSkipsEmptyPhrases(t *testing.T) {
	idx := BuildIndex([]Candidate{{Id: "a", Phrases: []string{"  ", "oi tudo bem"}}})
	require.Len(t, idx.entries, 1)
}
