package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/text"
)

func scoreOne(t *testing.T, message, phrase string) (Match, bool) {
	t.Helper()
	return ScorePhraseMatch(text.Fold(message), text.Tokenize(message), phrase, config.DefaultIntent())
}

func TestScorePhraseMatch(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"exact containment": func(t *testing.T) {
			m, ok := scoreOne(t, "oi, quero vender meu carro", "quero vender")
			require.True(t, ok)
			require.True(t, m.Exact)
			require.Equal(t, 102.0, m.Score)
			require.Equal(t, 1.0, m.Coverage)
		},
		"exact containment is accent insensitive": func(t *testing.T) {
			m, ok := scoreOne(t, "qual o HORÁRIO de funcionamento?", "horario de funcionamento")
			require.True(t, ok)
			require.True(t, m.Exact)
		},
		"direction conflict vetoes opposite intent": func(t *testing.T) {
			_, ok := scoreOne(t, "quero vender meu carro", "quero comprar um carro")
			require.False(t, ok)
		},
		"direction conflict vetoes the other way too": func(t *testing.T) {
			_, ok := scoreOne(t, "quero comprar um carro", "quero vender meu carro")
			require.False(t, ok)
		},
		"directional phrase needs a shared anchor": func(t *testing.T) {
			_, ok := scoreOne(t, "meu carro esta na loja", "quero vender meu carro")
			require.False(t, ok)
		},
		"morphological variants still match": func(t *testing.T) {
			m, ok := scoreOne(t, "Que horas posso ir?", "Qual horario eu posso ir?")
			require.True(t, ok)
			require.False(t, m.Exact)
			require.Equal(t, 3, m.Strong)
			require.InDelta(t, 0.75, m.Coverage, 0.001)
		},
		"single strong token is not enough for long phrases": func(t *testing.T) {
			_, ok := scoreOne(t, "loja", "qual horario posso visitar a loja")
			require.False(t, ok)
		},
		"empty phrase never matches": func(t *testing.T) {
			_, ok := scoreOne(t, "quero vender", "  ")
			require.False(t, ok)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestBestMatch(t *testing.T) {
	cfg := config.DefaultIntent()
	candidates := []Candidate{
		{Id: "buy", Label: "Comprar", Phrases: []string{"quero comprar", "comprar um carro"}},
		{Id: "sell", Label: "Vender", Phrases: []string{"quero vender", "vender meu carro"}},
		{Id: "hours", Label: "Horario", Phrases: []string{"qual horario eu posso ir"}},
	}

	for scenario, fn := range map[string]func(t *testing.T){
		"exact phrase selects its candidate": func(t *testing.T) {
			m := BestMatch("boa tarde, quero vender meu carro", candidates, cfg)
			require.NotNil(t, m)
			require.Equal(t, "sell", m.CandidateId)
			require.True(t, m.Exact)
		},
		"heuristic overlap selects across wording": func(t *testing.T) {
			m := BestMatch("Que horas posso ir?", candidates, cfg)
			require.NotNil(t, m)
			require.Equal(t, "hours", m.CandidateId)
			require.False(t, m.Exact)
		},
		"no candidate clears the gates": func(t *testing.T) {
			require.Nil(t, BestMatch("bom dia", candidates, cfg))
		},
		"priority breaks exact ties": func(t *testing.T) {
			tied := []Candidate{
				{Id: "low", Phrases: []string{"quero agendar"}, Priority: 1},
				{Id: "high", Phrases: []string{"quero agendar"}, Priority: 5},
			}
			m := BestMatch("quero agendar uma visita", tied, cfg)
			require.NotNil(t, m)
			require.Equal(t, "high", m.CandidateId)
		},
	} {
		t.Run(scenario, fn)
	}
}
