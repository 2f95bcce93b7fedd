package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "ola voce", Normalize("  Olá   VOCÊ "))
	require.Equal(t, "horario", Normalize("HORÁRIO"))
	require.Equal(t, "", Normalize("   "))
}

func TestFold(t *testing.T) {
	require.Equal(t, "quero vender meu carro", Fold("Quero vender meu carro!!!"))
	require.Equal(t, "qual horario de funcionamento", Fold("Qual horário de funcionamento?"))
}

func TestTokenize(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"drops stopwords and short tokens": func(t *testing.T) {
			tokens := Tokenize("eu quero comprar um carro")
			require.Equal(t, []string{"quero", "compr", "carro"}, tokens)
		},
		"strips punctuation": func(t *testing.T) {
			tokens := Tokenize("Que horas posso ir?")
			require.Equal(t, []string{"hora", "posso", "ir"}, tokens)
		},
		"collapses morphological variants": func(t *testing.T) {
			require.Equal(t, Tokenize("horario"), Tokenize("horas"))
		},
		"empty input": func(t *testing.T) {
			require.Empty(t, Tokenize("   ..! "))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestCanonicalizeToken(t *testing.T) {
	cases := map[string]string{
		"comprar":  "compr",
		"vender":   "vend",
		"vendendo": "vend",
		"horas":    "hora",
		"horario":  "hora",
		"horarios": "hora",
		"carros":   "carro",
		"carro":    "carro",
		"agendar":  "agend",
	}
	for input, want := range cases {
		require.Equal(t, want, CanonicalizeToken(input), "token %q", input)
	}
}

func TestCanonicalizeTokenIdempotent(t *testing.T) {
	inputs := []string{
		"comprar", "vender", "horas", "horario", "carros", "financiamento",
		"agendando", "avaliaram", "quero", "posso", "ir", "ve",
	}
	for _, input := range inputs {
		once := CanonicalizeToken(input)
		require.Equal(t, once, CanonicalizeToken(once), "token %q", input)
	}
}
