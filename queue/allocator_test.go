package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence/memory"
)

func seedAccount(t *testing.T, store *memory.Store, sessionId string, weight, dailyLimit int, connected bool) {
	t.Helper()
	require.NoError(t, store.SaveSenderAccount(model.SenderAccount{
		SessionId: sessionId, Weight: weight, DailyLimit: dailyLimit,
		Active: true, CampaignEnabled: true,
	}))
	require.NoError(t, store.SaveSession(model.WhatsAppSession{Id: sessionId, Connected: connected}))
}

func useCapacity(t *testing.T, store *memory.Store, sessionId string) {
	t.Helper()
	require.NoError(t, store.InsertMessage(&model.QueuedMessage{
		Id: "used-" + sessionId + "-" + time.Now().Format("150405.000000000"),
		LeadId: "lx", SessionId: sessionId, Content: "oi", MediaType: "text",
		Status: model.MESSAGE_SENT, FirstContact: true, CreatedAt: time.Now(),
	}))
}

func TestAllocateForSingleLead(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"no account configured": func(t *testing.T) {
			a := NewAllocator(memory.NewStore())
			_, err := a.AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"inactive accounts do not count as configured": func(t *testing.T) {
			store := memory.NewStore()
			require.NoError(t, store.SaveSenderAccount(model.SenderAccount{
				SessionId: "a", Active: false, CampaignEnabled: true,
			}))
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"nothing connected": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, false)
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.ErrorIs(t, err, ErrNoAccountConnected)
		},
		"cooling down account is skipped": func(t *testing.T) {
			store := memory.NewStore()
			until := time.Now().Add(time.Hour)
			require.NoError(t, store.SaveSenderAccount(model.SenderAccount{
				SessionId: "a", Active: true, CampaignEnabled: true, CooldownUntil: &until,
			}))
			require.NoError(t, store.SaveSession(model.WhatsAppSession{Id: "a", Connected: true}))
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"daily capacity steers to the free account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 1, true)
			seedAccount(t, store, "b", 1, 1, true)
			useCapacity(t, store, "a")

			sessionId, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.NoError(t, err)
			require.Equal(t, "b", sessionId)
		},
		"all accounts exhausted": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 1, true)
			seedAccount(t, store, "b", 1, 1, true)
			useCapacity(t, store, "a")
			useCapacity(t, store, "b")

			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_ROUND_ROBIN, "")
			require.ErrorIs(t, err, ErrCapacityExhausted)
		},
		"round robin cycles through sorted accounts": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "b", 1, 0, true)
			seedAccount(t, store, "a", 1, 0, true)
			seedAccount(t, store, "c", 1, 0, true)
			a := NewAllocator(store)

			var picks []string
			for i := 0; i < 4; i++ {
				sessionId, err := a.AllocateForSingleLead("camp", model.STRATEGY_ROUND_ROBIN, "")
				require.NoError(t, err)
				picks = append(picks, sessionId)
			}
			require.Equal(t, []string{"a", "b", "c", "a"}, picks)
		},
		"weighted round robin repeats by weight": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 2, 0, true)
			seedAccount(t, store, "b", 1, 0, true)
			a := NewAllocator(store)

			var picks []string
			for i := 0; i < 6; i++ {
				sessionId, err := a.AllocateForSingleLead("camp", model.STRATEGY_WEIGHTED_ROUND_ROBIN, "")
				require.NoError(t, err)
				picks = append(picks, sessionId)
			}
			require.Equal(t, []string{"a", "a", "b", "a", "a", "b"}, picks)
		},
		"random strategy draws from eligible set": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			seedAccount(t, store, "b", 1, 0, true)
			a := NewAllocator(store)
			a.randInt = func(n int) int { return 1 }

			sessionId, err := a.AllocateForSingleLead("", model.STRATEGY_RANDOM, "")
			require.NoError(t, err)
			require.Equal(t, "b", sessionId)
		},
		"single strategy pins the fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			seedAccount(t, store, "b", 1, 0, true)
			a := NewAllocator(store)

			sessionId, err := a.AllocateForSingleLead("", model.STRATEGY_SINGLE, "b")
			require.NoError(t, err)
			require.Equal(t, "b", sessionId)
		},
		"single strategy without a fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_SINGLE, "")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"single strategy with an inactive fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			require.NoError(t, store.SaveSenderAccount(model.SenderAccount{
				SessionId: "b", Active: false, CampaignEnabled: true,
			}))
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_SINGLE, "b")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"single strategy with a disconnected fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			seedAccount(t, store, "b", 1, 0, false)
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_SINGLE, "b")
			require.ErrorIs(t, err, ErrNoAccountConnected)
		},
		"single strategy with an unknown fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 0, true)
			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_SINGLE, "zz")
			require.ErrorIs(t, err, ErrNoAccountConfigured)
		},
		"single strategy with an exhausted fixed account": func(t *testing.T) {
			store := memory.NewStore()
			seedAccount(t, store, "a", 1, 1, true)
			seedAccount(t, store, "b", 1, 0, true)
			useCapacity(t, store, "a")

			_, err := NewAllocator(store).AllocateForSingleLead("", model.STRATEGY_SINGLE, "a")
			require.True(t, errors.Is(err, ErrCapacityExhausted))
		},
	} {
		t.Run(scenario, fn)
	}
}
