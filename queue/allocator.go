package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	c "github.com/patrickmn/go-cache"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
)

var (
	ErrNoAccountConfigured = errors.New("no sender account configured or enabled for campaigns")
	ErrNoAccountConnected  = errors.New("no eligible sender account is currently connected")
	ErrCapacityExhausted   = errors.New("all sender accounts exhausted their daily capacity")
)

// Allocator picks which outbound account handles a send under the configured
// strategy. Rotation cursors are scoped by (campaign, strategy, account set)
// so repeated calls continue the rotation instead of restarting.
type Allocator struct {
	storage persistence.Storage
	cursors *c.Cache
	now     func() time.Time
	randInt func(n int) int
}

func NewAllocator(storage persistence.Storage) *Allocator {
	return &Allocator{
		storage: storage,
		cursors: c.New(24*time.Hour, time.Hour),
		now:     time.Now,
		randInt: rand.Intn,
	}
}

// AllocateForSingleLead resolves one eligible session id for the next send.
func (a *Allocator) AllocateForSingleLead(campaignId string, strategy model.AllocationStrategy, fixedSessionId string) (string, error) {
	states, err := a.eligibleStates()
	if err != nil {
		return "", err
	}
	switch strategy {
	case model.STRATEGY_SINGLE:
		return a.allocateSingle(states, fixedSessionId)
	case model.STRATEGY_WEIGHTED_ROUND_ROBIN:
		return a.rotate(campaignId, strategy, weightedRotation(states)), nil
	case model.STRATEGY_RANDOM:
		return states[a.randInt(len(states))].SessionId, nil
	default:
		return a.rotate(campaignId, strategy, sessionIds(states)), nil
	}
}

func (a *Allocator) allocateSingle(states []model.SenderAccountState, fixedSessionId string) (string, error) {
	if len(fixedSessionId) == 0 {
		return "", ErrNoAccountConfigured
	}
	for _, state := range states {
		if state.SessionId == fixedSessionId {
			return state.SessionId, nil
		}
	}
	return "", a.diagnoseFixed(fixedSessionId)
}

// diagnoseFixed reports why the pinned account fell out of the eligible set,
// keeping the three allocation failure causes distinguishable.
func (a *Allocator) diagnoseFixed(sessionId string) error {
	accounts, err := a.storage.ListSenderAccounts()
	if err != nil {
		return err
	}
	now := a.now()
	for _, account := range accounts {
		if account.SessionId != sessionId {
			continue
		}
		cooling := account.CooldownUntil != nil && now.Before(*account.CooldownUntil)
		if !account.Active || !account.CampaignEnabled || cooling {
			return fmt.Errorf("account %s: %w", sessionId, ErrNoAccountConfigured)
		}
		session, err := a.storage.GetSession(sessionId)
		if err != nil || !session.Connected {
			return fmt.Errorf("account %s: %w", sessionId, ErrNoAccountConnected)
		}
		return fmt.Errorf("account %s: %w", sessionId, ErrCapacityExhausted)
	}
	return fmt.Errorf("account %s: %w", sessionId, ErrNoAccountConfigured)
}

// eligibleStates recomputes every account's transient state and filters to
// the eligible set, raising a distinguishable error per empty stage.
func (a *Allocator) eligibleStates() ([]model.SenderAccountState, error) {
	accounts, err := a.storage.ListSenderAccounts()
	if err != nil {
		return nil, err
	}
	now := a.now()
	var configured []model.SenderAccountState
	for _, account := range accounts {
		if !account.Active || !account.CampaignEnabled {
			continue
		}
		state := model.SenderAccountState{
			SessionId:       account.SessionId,
			Weight:          account.Weight,
			DailyLimit:      account.DailyLimit,
			CampaignEnabled: account.CampaignEnabled,
			CooldownUntil:   account.CooldownUntil,
		}
		if state.CoolingDown(now) {
			continue
		}
		if session, err := a.storage.GetSession(account.SessionId); err == nil {
			state.Connected = session.Connected
		}
		configured = append(configured, state)
	}
	if len(configured) == 0 {
		return nil, ErrNoAccountConfigured
	}
	var connected []model.SenderAccountState
	for _, state := range configured {
		if state.Connected {
			connected = append(connected, state)
		}
	}
	if len(connected) == 0 {
		return nil, ErrNoAccountConnected
	}
	var eligible []model.SenderAccountState
	for _, state := range connected {
		used, err := a.storage.UsedToday(state.SessionId, now)
		if err != nil {
			return nil, err
		}
		state.Used = used
		if state.Remaining() > 0 {
			eligible = append(eligible, state)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrCapacityExhausted
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].SessionId < eligible[j].SessionId })
	return eligible, nil
}

// rotate continues the cyclic cursor for the given scope over the rotation
// slice and returns the picked session id.
func (a *Allocator) rotate(campaignId string, strategy model.AllocationStrategy, rotation []string) string {
	scope := fmt.Sprintf("%s|%s|%s", campaignId, strategy, strings.Join(uniqueSorted(rotation), ","))
	index := 0
	if cached, ok := a.cursors.Get(scope); ok {
		index = cached.(int)
	}
	picked := rotation[index%len(rotation)]
	a.cursors.Set(scope, (index+1)%len(rotation), c.DefaultExpiration)
	return picked
}

func sessionIds(states []model.SenderAccountState) []string {
	ids := make([]string, 0, len(states))
	for _, state := range states {
		ids = append(ids, state.SessionId)
	}
	return ids
}

// weightedRotation repeats each account proportional to its weight so the
// plain cursor yields a weighted cycle.
func weightedRotation(states []model.SenderAccountState) []string {
	var rotation []string
	for _, state := range states {
		weight := state.Weight
		if weight < 1 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			rotation = append(rotation, state.SessionId)
		}
	}
	return rotation
}

func uniqueSorted(ids []string) []string {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
