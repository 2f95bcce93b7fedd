package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/model"
)

func TestCanonicalizeHandle(t *testing.T) {
	cases := map[string]string{
		"Comprar Carro!": "comprar-carro",
		"  Visita  ":     "visita",
		"AVALIAÇÃO":      "avaliacao",
		"sim_ou_nao":     "sim-ou-nao",
		"default":        "default",
		"":               "",
		"---":            "",
	}
	for input, want := range cases {
		require.Equal(t, want, CanonicalizeHandle(input), "handle %q", input)
	}
}

func TestEdgeHandleDefaults(t *testing.T) {
	require.Equal(t, model.DefaultHandle, model.Edge{}.Handle())
	require.Equal(t, model.DefaultHandle, model.Edge{SourceHandle: "  "}.Handle())
	require.Equal(t, "buy", model.Edge{SourceHandle: "buy"}.Handle())
}

func TestMatchEdgeToHandle(t *testing.T) {
	route := model.IntentRoute{Id: "buy", Label: "Comprar", Phrases: "quero comprar; comprar carro"}

	for scenario, fn := range map[string]func(t *testing.T){
		"literal handle": func(t *testing.T) {
			require.True(t, matchEdgeToHandle(model.Edge{SourceHandle: "buy"}, "buy", &route))
		},
		"canonical equivalence": func(t *testing.T) {
			require.True(t, matchEdgeToHandle(model.Edge{SourceHandle: "Buy "}, "buy", &route))
		},
		"route label alias": func(t *testing.T) {
			require.True(t, matchEdgeToHandle(model.Edge{SourceHandle: "Comprar"}, "buy", &route))
		},
		"route phrase alias": func(t *testing.T) {
			require.True(t, matchEdgeToHandle(model.Edge{SourceHandle: "quero comprar"}, "buy", &route))
		},
		"unrelated handle": func(t *testing.T) {
			require.False(t, matchEdgeToHandle(model.Edge{SourceHandle: "sell"}, "buy", &route))
		},
	} {
		t.Run(scenario, fn)
	}
}
