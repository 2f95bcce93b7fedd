package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPhrases(t *testing.T) {
	require.Equal(t, []string{"quero comprar", "comprar carro", "compra"},
		IntentRoute{Phrases: "quero comprar; comprar carro,compra"}.SplitPhrases())
	require.Equal(t, []string{"a", "b"}, IntentRoute{Phrases: "a|b"}.SplitPhrases())
	require.Empty(t, IntentRoute{Phrases: " ; , "}.SplitPhrases())
}

func TestEdgeHandle(t *testing.T) {
	require.Equal(t, DefaultHandle, Edge{}.Handle())
	require.Equal(t, "sell", Edge{SourceHandle: "sell"}.Handle())
}

func TestExecutionStatusTerminal(t *testing.T) {
	require.False(t, EXECUTION_RUNNING.Terminal())
	require.True(t, EXECUTION_PAUSED.Terminal())
	require.True(t, EXECUTION_COMPLETED.Terminal())
	require.True(t, EXECUTION_FAILED.Terminal())
	require.True(t, EXECUTION_CANCELLED.Terminal())
}

func TestSenderAccountStateRemaining(t *testing.T) {
	unlimited := SenderAccountState{DailyLimit: 0, Used: 500}
	require.Greater(t, unlimited.Remaining(), 1000000)

	limited := SenderAccountState{DailyLimit: 3, Used: 1}
	require.Equal(t, 2, limited.Remaining())

	over := SenderAccountState{DailyLimit: 3, Used: 5}
	require.Zero(t, over.Remaining())
}
