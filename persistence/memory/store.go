// Package memory implements the storage contracts with in-process maps. Used
// by tests and single-node evaluation setups.
package memory

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
)

type Store struct {
	mu            sync.Mutex
	flows         map[string]model.FlowDefinition
	executions    map[string]model.FlowExecution
	runningByConv map[string]string
	messages      map[string]model.QueuedMessage
	leads         map[string]model.Lead
	conversations map[string]model.Conversation
	accounts      map[string]model.SenderAccount
	sessions      map[string]model.WhatsAppSession
	customEvents  map[string]model.CustomEvent
	occurrences   []model.EventOccurrence
	settings      map[string]string
}

var _ persistence.Storage = new(Store)

func NewStore() *Store {
	return &Store{
		flows:         map[string]model.FlowDefinition{},
		executions:    map[string]model.FlowExecution{},
		runningByConv: map[string]string{},
		messages:      map[string]model.QueuedMessage{},
		leads:         map[string]model.Lead{},
		conversations: map[string]model.Conversation{},
		accounts:      map[string]model.SenderAccount{},
		sessions:      map[string]model.WhatsAppSession{},
		customEvents:  map[string]model.CustomEvent{},
		settings:      map[string]string{},
	}
}

func (s *Store) SaveFlowDefinition(flow model.FlowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.Id] = flow
	return nil
}

func (s *Store) GetFlowDefinition(id string) (*model.FlowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "flow", Id: id}
	}
	return &flow, nil
}

func (s *Store) DeleteFlowDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, id)
	return nil
}

func (s *Store) ListActiveFlows() ([]model.FlowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flows []model.FlowDefinition
	for _, flow := range s.flows {
		if flow.Active {
			flows = append(flows, flow)
		}
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].Id < flows[j].Id })
	return flows, nil
}

func (s *Store) SaveExecution(execution *model.FlowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.Id] = *execution
	if execution.Status == model.EXECUTION_RUNNING {
		s.runningByConv[execution.ConversationId] = execution.Id
	} else if s.runningByConv[execution.ConversationId] == execution.Id {
		delete(s.runningByConv, execution.ConversationId)
	}
	return nil
}

func (s *Store) GetExecution(id string) (*model.FlowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	execution, ok := s.executions[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "execution", Id: id}
	}
	return &execution, nil
}

func (s *Store) FindRunningByConversation(conversationId string) (*model.FlowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	execId, ok := s.runningByConv[conversationId]
	if !ok {
		return nil, nil
	}
	execution, ok := s.executions[execId]
	if !ok || execution.Status != model.EXECUTION_RUNNING {
		return nil, nil
	}
	return &execution, nil
}

func (s *Store) InsertMessage(msg *model.QueuedMessage) error {
	return s.InsertMessages([]*model.QueuedMessage{msg})
}

func (s *Store) InsertMessages(msgs []*model.QueuedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		s.messages[msg.Id] = *msg
	}
	return nil
}

func scheduledAt(msg model.QueuedMessage) time.Time {
	if msg.ScheduledAt != nil {
		return *msg.ScheduledAt
	}
	return msg.CreatedAt
}

func (s *Store) FetchNextEligible(now time.Time) (*model.QueuedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.QueuedMessage
	for id := range s.messages {
		msg := s.messages[id]
		if msg.Status != model.MESSAGE_PENDING || scheduledAt(msg).After(now) {
			continue
		}
		if best == nil ||
			msg.Priority > best.Priority ||
			(msg.Priority == best.Priority && scheduledAt(msg).Before(scheduledAt(*best))) {
			copy := msg
			best = &copy
		}
	}
	return best, nil
}

func (s *Store) mark(id string, mutate func(*model.QueuedMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return persistence.NotFoundError{Kind: "queued message", Id: id}
	}
	mutate(&msg)
	s.messages[id] = msg
	return nil
}

func (s *Store) MarkProcessing(id string) error {
	return s.mark(id, func(m *model.QueuedMessage) { m.Status = model.MESSAGE_PROCESSING })
}

func (s *Store) MarkSent(id string, at time.Time) error {
	return s.mark(id, func(m *model.QueuedMessage) {
		m.Status = model.MESSAGE_SENT
		m.SentAt = &at
	})
}

func (s *Store) MarkFailed(id string, errMsg string) error {
	return s.mark(id, func(m *model.QueuedMessage) {
		m.Status = model.MESSAGE_FAILED
		m.ErrorMessage = errMsg
	})
}

func (s *Store) MarkCancelled(id string) error {
	return s.mark(id, func(m *model.QueuedMessage) { m.Status = model.MESSAGE_CANCELLED })
}

func (s *Store) AssignSession(id string, sessionId string) error {
	return s.mark(id, func(m *model.QueuedMessage) { m.SessionId = sessionId })
}

func (s *Store) PendingCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.messages {
		if msg.Status == model.MESSAGE_PENDING {
			count++
		}
	}
	return count, nil
}

func (s *Store) CancelPending(campaignId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := 0
	for id, msg := range s.messages {
		if msg.Status != model.MESSAGE_PENDING {
			continue
		}
		if len(campaignId) > 0 && msg.CampaignId != campaignId {
			continue
		}
		msg.Status = model.MESSAGE_CANCELLED
		s.messages[id] = msg
		cancelled++
	}
	return cancelled, nil
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s *Store) UsedToday(sessionId string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := 0
	for _, msg := range s.messages {
		if !msg.FirstContact || msg.SessionId != sessionId {
			continue
		}
		if !sameDay(msg.CreatedAt, now) {
			continue
		}
		switch msg.Status {
		case model.MESSAGE_PENDING, model.MESSAGE_PROCESSING, model.MESSAGE_SENT:
			used++
		}
	}
	return used, nil
}

func (s *Store) FailPendingChatMessage(leadId string, conversationId string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, msg := range s.messages {
		if msg.Status == model.MESSAGE_PENDING && msg.LeadId == leadId &&
			len(conversationId) > 0 && msg.ConversationId == conversationId {
			msg.Status = model.MESSAGE_FAILED
			msg.ErrorMessage = errMsg
			s.messages[id] = msg
			return nil
		}
	}
	return nil
}

func (s *Store) GetLead(id string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "lead", Id: id}
	}
	return &lead, nil
}

func (s *Store) SaveLead(lead *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.Id] = *lead
	return nil
}

func (s *Store) GetConversation(id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "conversation", Id: id}
	}
	return &conv, nil
}

func (s *Store) SaveConversation(conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.Id] = *conv
	return nil
}

func (s *Store) SetAutomationEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return persistence.NotFoundError{Kind: "conversation", Id: id}
	}
	conv.AutomationEnabled = enabled
	s.conversations[id] = conv
	return nil
}

func (s *Store) ListCustomEvents() ([]model.CustomEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []model.CustomEvent
	for _, event := range s.customEvents {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Id < events[j].Id })
	return events, nil
}

func (s *Store) SaveCustomEvent(event model.CustomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customEvents[event.Id] = event
	return nil
}

func (s *Store) AppendOccurrence(occ model.EventOccurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occurrences = append(s.occurrences, occ)
	return nil
}

// Occurrences returns a copy of the logged event occurrences.
func (s *Store) Occurrences() []model.EventOccurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventOccurrence, len(s.occurrences))
	copy(out, s.occurrences)
	return out
}

func (s *Store) ListSenderAccounts() ([]model.SenderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []model.SenderAccount
	for _, account := range s.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].SessionId < accounts[j].SessionId })
	return accounts, nil
}

func (s *Store) SaveSenderAccount(account model.SenderAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.SessionId] = account
	return nil
}

func (s *Store) GetSession(id string) (*model.WhatsAppSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "session", Id: id}
	}
	return &session, nil
}

func (s *Store) SaveSession(session model.WhatsAppSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Id] = session
	return nil
}

func (s *Store) GetSetting(key string, defaultValue string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.settings[key]
	if !ok {
		return defaultValue, nil
	}
	return value, nil
}

func (s *Store) GetIntSetting(key string, defaultValue int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.settings[key]
	if !ok {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, nil
	}
	return value, nil
}

func (s *Store) SetSetting(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}
