// Package engine drives leads through flow graphs: it starts executions,
// persists their position after every transition, resolves replies to edges
// and resumes mid-flow leads across process restarts.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	c "github.com/patrickmn/go-cache"
	"github.com/zapflow/zapflow/events"
	"github.com/zapflow/zapflow/intent"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"github.com/zapflow/zapflow/persistence"
	"go.uber.org/zap"
)

const defaultDelaySeconds = 5

type Engine struct {
	storage  persistence.Storage
	resolver *intent.Resolver
	sender   Sender
	emitter  events.Emitter
	// active maps conversation id to its running execution. TTL-evicted;
	// a miss falls back to the persisted running row.
	active *c.Cache
	// flows pins the definition snapshot each execution started with, so
	// concurrent edits never retarget an in-flight run.
	flows *c.Cache
	sleep func(time.Duration)
}

func New(storage persistence.Storage, resolver *intent.Resolver, sender Sender, emitter events.Emitter, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Hour
	}
	return &Engine{
		storage:  storage,
		resolver: resolver,
		sender:   sender,
		emitter:  emitter,
		active:   c.New(cacheTTL, 10*time.Minute),
		flows:    c.New(cacheTTL, 10*time.Minute),
		sleep:    time.Sleep,
	}
}

// StartFlow creates and runs a new execution for the conversation. If one is
// already running it is returned unchanged: one active execution per
// conversation is an enforced invariant.
func (e *Engine) StartFlow(ctx context.Context, flow *model.FlowDefinition, lead *model.Lead, conversation *model.Conversation, triggerMessage string) (*model.FlowExecution, error) {
	if existing := e.activeExecution(conversation.Id); existing != nil {
		return existing, nil
	}
	if existing, err := e.storage.FindRunningByConversation(conversation.Id); err == nil && existing != nil {
		if existing.Variables == nil {
			existing.Variables = map[string]any{}
		}
		if existing.FlowId == flow.Id {
			e.register(existing, flow)
			return existing, nil
		}
		// The running execution belongs to a different flow: pin its own
		// definition, never the caller's.
		stored, err := e.storage.GetFlowDefinition(existing.FlowId)
		if err == nil {
			e.register(existing, stored)
			return existing, nil
		}
		logger.Error("flow missing for persisted execution",
			zap.String("executionId", existing.Id), zap.String("flowId", existing.FlowId))
		e.endFlow(existing, model.EXECUTION_FAILED, "flow definition no longer exists")
	}
	start := resolveStartNode(flow)
	if start == nil {
		logger.Warn("flow has no start node", zap.String("flowId", flow.Id))
		return nil, nil
	}
	execution := &model.FlowExecution{
		Id:             uuid.NewString(),
		Uuid:           uuid.NewString(),
		FlowId:         flow.Id,
		ConversationId: conversation.Id,
		LeadId:         lead.Id,
		CurrentNodeId:  start.Id,
		Variables:      seedVariables(lead, triggerMessage),
		Status:         model.EXECUTION_RUNNING,
		StartedAt:      time.Now(),
	}
	if err := e.storage.SaveExecution(execution); err != nil {
		return nil, err
	}
	e.register(execution, flow)
	e.emitter.Emit(model.EVENT_FLOW_STARTED, map[string]any{
		"executionId": execution.Id, "flowId": flow.Id, "leadId": lead.Id,
	})
	logger.Info("flow started", zap.String("flowId", flow.Id),
		zap.String("executionId", execution.Id), zap.String("leadId", lead.Id))
	e.executeNode(ctx, execution, flow, start.Id)
	return execution, nil
}

// ProcessIncomingMessage feeds an inbound message to the conversation's
// active execution, or tries to select and start a flow for it.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, message model.IncomingMessage, lead *model.Lead, conversation *model.Conversation) error {
	if conversation == nil || !conversation.AutomationEnabled {
		return nil
	}
	firstContact := lead.FirstContactAt == nil
	if firstContact {
		now := time.Now()
		lead.FirstContactAt = &now
		if err := e.storage.SaveLead(lead); err != nil {
			logger.Error("error recording first contact",
				zap.String("leadId", lead.Id), zap.Error(err))
		}
	}
	if execution := e.resumeActive(conversation.Id); execution != nil {
		return e.ContinueFlow(ctx, execution, message)
	}
	flow := e.selectFlow(ctx, message, firstContact)
	if flow == nil {
		return nil
	}
	_, err := e.StartFlow(ctx, flow, lead, conversation, message.Content)
	return err
}

// resumeActive returns the conversation's running execution, rehydrating it
// from storage when the in-memory index misses (engine restarts).
func (e *Engine) resumeActive(conversationId string) *model.FlowExecution {
	if execution := e.activeExecution(conversationId); execution != nil {
		return execution
	}
	stored, err := e.storage.FindRunningByConversation(conversationId)
	if err != nil || stored == nil {
		return nil
	}
	flow, err := e.storage.GetFlowDefinition(stored.FlowId)
	if err != nil {
		logger.Error("flow missing for persisted execution",
			zap.String("executionId", stored.Id), zap.String("flowId", stored.FlowId))
		e.endFlow(stored, model.EXECUTION_FAILED, "flow definition no longer exists")
		return nil
	}
	if stored.Variables == nil {
		stored.Variables = map[string]any{}
	}
	e.register(stored, flow)
	logger.Info("execution rehydrated", zap.String("executionId", stored.Id),
		zap.String("node", stored.CurrentNodeId))
	return stored
}

func (e *Engine) selectFlow(ctx context.Context, message model.IncomingMessage, firstContact bool) *model.FlowDefinition {
	flows, err := e.storage.ListActiveFlows()
	if err != nil {
		logger.Error("error listing flows", zap.Error(err))
		return nil
	}
	var candidates []intent.Candidate
	byId := map[string]*model.FlowDefinition{}
	for i := range flows {
		flow := &flows[i]
		if flow.TriggerType != model.TRIGGER_KEYWORD {
			continue
		}
		phrases := model.IntentRoute{Phrases: flow.TriggerValue}.SplitPhrases()
		if len(phrases) == 0 {
			continue
		}
		byId[flow.Id] = flow
		candidates = append(candidates, intent.Candidate{
			Id: flow.Id, Label: flow.Name, Phrases: phrases, Priority: flow.Priority,
		})
	}
	if sel := e.resolver.Resolve(ctx, message.Content, candidates); sel != nil {
		return byId[sel.CandidateId]
	}
	if firstContact {
		var fallback *model.FlowDefinition
		for i := range flows {
			flow := &flows[i]
			if flow.TriggerType != model.TRIGGER_NEW_CONTACT {
				continue
			}
			if fallback == nil || flow.Priority > fallback.Priority {
				fallback = flow
			}
		}
		return fallback
	}
	return nil
}

// ContinueFlow advances a suspended execution with the lead's reply.
func (e *Engine) ContinueFlow(ctx context.Context, execution *model.FlowExecution, message model.IncomingMessage) error {
	flow, err := e.flowFor(execution)
	if err != nil {
		e.endFlow(execution, model.EXECUTION_FAILED, err.Error())
		return nil
	}
	node := flow.Node(execution.CurrentNodeId)
	if node == nil {
		e.endFlow(execution, model.EXECUTION_COMPLETED, "")
		return nil
	}
	execution.Variables["ultima_resposta"] = message.Content
	switch node.Type {
	case model.NODE_INTENT:
		preferred := ""
		if sel := e.resolver.Resolve(ctx, message.Content, routeCandidates(node.Data.IntentRoutes)); sel != nil {
			preferred = sel.CandidateId
		}
		if next, ok := e.goToNextNode(execution, flow, node, preferred); ok {
			e.executeNode(ctx, execution, flow, next)
		}
	case model.NODE_WAIT, model.NODE_CONDITION:
		e.continueFromCondition(ctx, execution, flow, node, message.Content)
	default:
		// not a suspension node; run it again to pick the chain back up
		e.executeNode(ctx, execution, flow, node.Id)
	}
	return nil
}

// continueFromCondition resolves a reply at a wait/condition node: declared
// node conditions first, then edge labels, then the single default edge.
func (e *Engine) continueFromCondition(ctx context.Context, execution *model.FlowExecution, flow *model.FlowDefinition, node *model.Node, reply string) {
	lowered := strings.ToLower(strings.TrimSpace(reply))
	for _, cond := range node.Data.Conditions {
		value := strings.ToLower(strings.TrimSpace(cond.Value))
		if len(value) == 0 {
			continue
		}
		if lowered == value || strings.Contains(lowered, value) {
			handle := cond.Handle
			if len(handle) == 0 {
				handle = cond.Value
			}
			if next, ok := e.edgeByHandle(flow, node, handle); ok {
				e.executeNode(ctx, execution, flow, next)
				return
			}
		}
	}
	for _, edge := range flow.EdgesFrom(node.Id) {
		label := strings.ToLower(strings.TrimSpace(edge.Label))
		if len(label) == 0 {
			continue
		}
		if lowered == label || strings.Contains(lowered, label) {
			e.executeNode(ctx, execution, flow, edge.Target)
			return
		}
	}
	for _, edge := range flow.EdgesFrom(node.Id) {
		if CanonicalizeHandle(edge.Handle()) == model.DefaultHandle && len(edge.Label) == 0 {
			e.executeNode(ctx, execution, flow, edge.Target)
			return
		}
	}
	e.endFlow(execution, model.EXECUTION_COMPLETED, "")
}

func (e *Engine) edgeByHandle(flow *model.FlowDefinition, node *model.Node, handle string) (string, bool) {
	want := CanonicalizeHandle(handle)
	for _, edge := range flow.EdgesFrom(node.Id) {
		if CanonicalizeHandle(edge.Handle()) == want {
			return edge.Target, true
		}
	}
	return "", false
}

// executeNode persists the new position, runs the node's behavior and keeps
// advancing until the execution suspends or terminates. Any error or panic
// inside a node fails the flow without crashing the engine.
func (e *Engine) executeNode(ctx context.Context, execution *model.FlowExecution, flow *model.FlowDefinition, nodeId string) {
	node := flow.Node(nodeId)
	if node == nil {
		e.endFlow(execution, model.EXECUTION_COMPLETED, "")
		return
	}
	execution.CurrentNodeId = nodeId
	if err := e.storage.SaveExecution(execution); err != nil {
		logger.Error("error persisting execution position",
			zap.String("executionId", execution.Id), zap.Error(err))
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic executing node", zap.String("node", nodeId), zap.Any("panic", r))
			e.endFlow(execution, model.EXECUTION_FAILED, fmt.Sprintf("panic at node %s: %v", nodeId, r))
		}
	}()
	advance, preferred, err := e.runNode(ctx, execution, flow, node)
	if err != nil {
		logger.Error("node execution failed", zap.String("node", nodeId),
			zap.String("executionId", execution.Id), zap.Error(err))
		e.endFlow(execution, model.EXECUTION_FAILED, err.Error())
		return
	}
	if !advance {
		return
	}
	if next, ok := e.goToNextNode(execution, flow, node, preferred); ok {
		e.executeNode(ctx, execution, flow, next)
	}
}

func (e *Engine) runNode(ctx context.Context, execution *model.FlowExecution, flow *model.FlowDefinition, node *model.Node) (advance bool, preferredHandle string, err error) {
	switch node.Type {
	case model.NODE_TRIGGER:
		return true, e.resolveTriggerHandle(ctx, execution, node), nil
	case model.NODE_MESSAGE:
		return true, "", e.runMessageNode(ctx, execution, node)
	case model.NODE_WAIT, model.NODE_INTENT, model.NODE_CONDITION:
		// suspension point: the execution sits here until the next inbound
		// message arrives, possibly after a restart
		return false, "", nil
	case model.NODE_DELAY:
		seconds := node.Data.Seconds
		if seconds <= 0 {
			seconds = defaultDelaySeconds
		}
		e.sleep(time.Duration(seconds) * time.Second)
		return true, "", nil
	case model.NODE_TRANSFER:
		return false, "", e.runTransferNode(ctx, execution, node)
	case model.NODE_TAG:
		return true, "", e.runTagNode(execution, node)
	case model.NODE_STATUS:
		return true, "", e.runStatusNode(execution, node)
	case model.NODE_WEBHOOK:
		e.emitter.Emit(model.EVENT_FLOW_WEBHOOK, map[string]any{
			"url": node.Data.Url, "flowId": flow.Id, "leadId": execution.LeadId,
			"executionId": execution.Id, "variables": execution.Variables,
		})
		return true, "", nil
	case model.NODE_EVENT:
		e.runEventNode(execution, flow, node)
		return true, "", nil
	case model.NODE_END:
		e.endFlow(execution, model.EXECUTION_COMPLETED, "")
		return false, "", nil
	default:
		// unknown types advance through the default edge, forward compatible
		return true, "", nil
	}
}

func (e *Engine) resolveTriggerHandle(ctx context.Context, execution *model.FlowExecution, node *model.Node) string {
	if len(node.Data.IntentRoutes) == 0 {
		return ""
	}
	triggerText, _ := execution.Variables["mensagem"].(string)
	sel := e.resolver.Resolve(ctx, triggerText, routeCandidates(node.Data.IntentRoutes))
	if sel == nil {
		delete(execution.Variables, "trigger_intent_handle")
		return ""
	}
	execution.Variables["trigger_intent_handle"] = sel.CandidateId
	return sel.CandidateId
}

func (e *Engine) runMessageNode(ctx context.Context, execution *model.FlowExecution, node *model.Node) error {
	if node.Data.DelaySeconds > 0 {
		e.sleep(time.Duration(node.Data.DelaySeconds) * time.Second)
	}
	rendered := Sanitize(Interpolate(node.Data.Content, execution.Variables))
	mediaType := node.Data.MediaType
	if len(mediaType) == 0 {
		mediaType = "text"
	}
	if len(rendered) == 0 && mediaType == "text" {
		logger.Warn("skipping empty message node", zap.String("node", node.Id),
			zap.String("executionId", execution.Id))
		return nil
	}
	lead, err := e.storage.GetLead(execution.LeadId)
	if err != nil {
		return err
	}
	return e.sender.Send(ctx, model.OutboundMessage{
		To:             lead.Phone,
		Jid:            lead.Jid,
		Content:        rendered,
		MediaType:      mediaType,
		MediaUrl:       node.Data.MediaUrl,
		ConversationId: execution.ConversationId,
	})
}

func (e *Engine) runTransferNode(ctx context.Context, execution *model.FlowExecution, node *model.Node) error {
	if len(node.Data.Message) > 0 {
		rendered := Sanitize(Interpolate(node.Data.Message, execution.Variables))
		if len(rendered) > 0 {
			lead, err := e.storage.GetLead(execution.LeadId)
			if err != nil {
				return err
			}
			if err := e.sender.Send(ctx, model.OutboundMessage{
				To: lead.Phone, Jid: lead.Jid, Content: rendered,
				MediaType: "text", ConversationId: execution.ConversationId,
			}); err != nil {
				return err
			}
		}
	}
	if err := e.storage.SetAutomationEnabled(execution.ConversationId, false); err != nil {
		logger.Error("error disabling automation on transfer",
			zap.String("conversationId", execution.ConversationId), zap.Error(err))
	}
	e.endFlow(execution, model.EXECUTION_COMPLETED, "")
	e.emitter.Emit(model.EVENT_FLOW_TRANSFER, map[string]any{
		"executionId": execution.Id, "leadId": execution.LeadId,
		"conversationId": execution.ConversationId,
	})
	return nil
}

func (e *Engine) runTagNode(execution *model.FlowExecution, node *model.Node) error {
	if len(node.Data.Tag) == 0 {
		return nil
	}
	lead, err := e.storage.GetLead(execution.LeadId)
	if err != nil {
		return err
	}
	if !lead.HasTag(node.Data.Tag) {
		lead.Tags = append(lead.Tags, node.Data.Tag)
		return e.storage.SaveLead(lead)
	}
	return nil
}

func (e *Engine) runStatusNode(execution *model.FlowExecution, node *model.Node) error {
	lead, err := e.storage.GetLead(execution.LeadId)
	if err != nil {
		return err
	}
	lead.Status = node.Data.Status
	return e.storage.SaveLead(lead)
}

// runEventNode resolves a configured custom event by id, then key, then name,
// first match wins. A miss warns but still advances.
func (e *Engine) runEventNode(execution *model.FlowExecution, flow *model.FlowDefinition, node *model.Node) {
	all, err := e.storage.ListCustomEvents()
	if err != nil {
		logger.Error("error listing custom events", zap.Error(err))
		return
	}
	var found *model.CustomEvent
	for _, try := range []func(model.CustomEvent) bool{
		func(ev model.CustomEvent) bool { return len(node.Data.EventId) > 0 && ev.Id == node.Data.EventId },
		func(ev model.CustomEvent) bool { return len(node.Data.EventKey) > 0 && ev.Key == node.Data.EventKey },
		func(ev model.CustomEvent) bool { return len(node.Data.EventName) > 0 && ev.Name == node.Data.EventName },
	} {
		for i := range all {
			if try(all[i]) {
				found = &all[i]
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		logger.Warn("event node resolved no custom event", zap.String("node", node.Id),
			zap.String("eventId", node.Data.EventId), zap.String("eventKey", node.Data.EventKey))
		return
	}
	if err := e.storage.AppendOccurrence(model.EventOccurrence{
		EventId:        found.Id,
		FlowId:         flow.Id,
		NodeId:         node.Id,
		LeadId:         execution.LeadId,
		ConversationId: execution.ConversationId,
		ExecutionId:    execution.Id,
		OccurredAt:     time.Now(),
	}); err != nil {
		logger.Error("error logging event occurrence", zap.Error(err))
	}
	execution.Variables["event_name"] = found.Name
	execution.Variables["event_key"] = found.Key
}

// goToNextNode resolves which outgoing edge to take. The bool is false when
// the flow ended instead.
func (e *Engine) goToNextNode(execution *model.FlowExecution, flow *model.FlowDefinition, node *model.Node, preferredHandle string) (string, bool) {
	edges := flow.EdgesFrom(node.Id)
	if len(edges) == 0 {
		e.endFlow(execution, model.EXECUTION_COMPLETED, "")
		return "", false
	}
	if isIntentBearing(node) && len(preferredHandle) > 0 {
		route := findRoute(node.Data.IntentRoutes, preferredHandle)
		for _, edge := range edges {
			if matchEdgeToHandle(edge, preferredHandle, route) {
				return edge.Target, true
			}
		}
	}
	for _, edge := range edges {
		if CanonicalizeHandle(edge.Handle()) == model.DefaultHandle {
			return edge.Target, true
		}
	}
	if node.Type == model.NODE_INTENT {
		if len(edges) == 1 {
			return edges[0].Target, true
		}
	} else {
		return edges[0].Target, true
	}
	handles := make([]string, 0, len(edges))
	for _, edge := range edges {
		handles = append(handles, edge.Handle())
	}
	logger.Warn("no edge resolved for node", zap.String("node", node.Id),
		zap.String("preferredHandle", preferredHandle), zap.Strings("available", handles))
	e.endFlow(execution, model.EXECUTION_COMPLETED, "")
	return "", false
}

func (e *Engine) endFlow(execution *model.FlowExecution, status model.ExecutionStatus, errorMessage string) {
	execution.Status = status
	execution.ErrorMessage = errorMessage
	if status != model.EXECUTION_PAUSED {
		now := time.Now()
		execution.CompletedAt = &now
	}
	if err := e.storage.SaveExecution(execution); err != nil {
		logger.Error("error persisting terminal execution",
			zap.String("executionId", execution.Id), zap.Error(err))
	}
	e.active.Delete(execution.ConversationId)
	e.flows.Delete(execution.Id)
	e.emitter.Emit(model.EVENT_FLOW_ENDED, map[string]any{
		"executionId": execution.Id, "flowId": execution.FlowId,
		"status": string(status), "error": errorMessage,
	})
	logger.Info("flow ended", zap.String("executionId", execution.Id),
		zap.String("status", string(status)))
}

// PauseExecution marks the stored row paused and drops it from the active
// index; inbound messages will no longer resume it.
func (e *Engine) PauseExecution(id string) error {
	execution, err := e.storage.GetExecution(id)
	if err != nil {
		return err
	}
	if execution.Status != model.EXECUTION_RUNNING {
		return fmt.Errorf("execution %s is not running", id)
	}
	e.endFlow(execution, model.EXECUTION_PAUSED, "")
	return nil
}

func (e *Engine) CancelExecution(id string) error {
	execution, err := e.storage.GetExecution(id)
	if err != nil {
		return err
	}
	if execution.Status.Terminal() {
		return fmt.Errorf("execution %s already ended", id)
	}
	e.endFlow(execution, model.EXECUTION_CANCELLED, "")
	return nil
}

// ResumeExecution flips a paused execution back to running and re-registers
// it; the explicit path back into the running state.
func (e *Engine) ResumeExecution(id string) error {
	execution, err := e.storage.GetExecution(id)
	if err != nil {
		return err
	}
	if execution.Status != model.EXECUTION_PAUSED {
		return fmt.Errorf("execution %s is not paused", id)
	}
	flow, err := e.storage.GetFlowDefinition(execution.FlowId)
	if err != nil {
		return err
	}
	execution.Status = model.EXECUTION_RUNNING
	execution.CompletedAt = nil
	if err := e.storage.SaveExecution(execution); err != nil {
		return err
	}
	e.register(execution, flow)
	logger.Info("execution resumed", zap.String("executionId", id))
	return nil
}

func (e *Engine) activeExecution(conversationId string) *model.FlowExecution {
	if cached, ok := e.active.Get(conversationId); ok {
		return cached.(*model.FlowExecution)
	}
	return nil
}

func (e *Engine) register(execution *model.FlowExecution, flow *model.FlowDefinition) {
	e.active.Set(execution.ConversationId, execution, c.DefaultExpiration)
	e.flows.Set(execution.Id, flow, c.DefaultExpiration)
}

func (e *Engine) flowFor(execution *model.FlowExecution) (*model.FlowDefinition, error) {
	if cached, ok := e.flows.Get(execution.Id); ok {
		return cached.(*model.FlowDefinition), nil
	}
	flow, err := e.storage.GetFlowDefinition(execution.FlowId)
	if err != nil {
		return nil, fmt.Errorf("flow definition %s no longer exists", execution.FlowId)
	}
	e.flows.Set(execution.Id, flow, c.DefaultExpiration)
	return flow, nil
}

func resolveStartNode(flow *model.FlowDefinition) *model.Node {
	if node := flow.Node("start"); node != nil {
		return node
	}
	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		if node.Type == model.NODE_TRIGGER && node.Subtype == string(flow.TriggerType) {
			return node
		}
	}
	for i := range flow.Nodes {
		if flow.Nodes[i].Type == model.NODE_TRIGGER {
			return &flow.Nodes[i]
		}
	}
	for i := range flow.Nodes {
		if !flow.HasIncomingEdge(flow.Nodes[i].Id) {
			return &flow.Nodes[i]
		}
	}
	if len(flow.Nodes) > 0 {
		return &flow.Nodes[0]
	}
	return nil
}

func seedVariables(lead *model.Lead, triggerMessage string) map[string]any {
	variables := map[string]any{
		"nome":     lead.Name,
		"telefone": lead.Phone,
		"veiculo":  lead.Vehicle,
		"placa":    lead.Plate,
	}
	if len(triggerMessage) > 0 {
		variables["mensagem"] = triggerMessage
	}
	return variables
}

func routeCandidates(routes []model.IntentRoute) []intent.Candidate {
	candidates := make([]intent.Candidate, 0, len(routes))
	for _, route := range routes {
		phrases := route.SplitPhrases()
		if len(route.Id) == 0 || len(phrases) == 0 {
			continue
		}
		candidates = append(candidates, intent.Candidate{
			Id: route.Id, Label: route.Label, Phrases: phrases,
		})
	}
	return candidates
}
