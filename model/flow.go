package model

import "strings"

type NodeType string

const (
	NODE_TRIGGER   NodeType = "trigger"
	NODE_INTENT    NodeType = "intent"
	NODE_MESSAGE   NodeType = "message"
	NODE_WAIT      NodeType = "wait"
	NODE_CONDITION NodeType = "condition"
	NODE_DELAY     NodeType = "delay"
	NODE_TRANSFER  NodeType = "transfer"
	NODE_TAG       NodeType = "tag"
	NODE_STATUS    NodeType = "status"
	NODE_WEBHOOK   NodeType = "webhook"
	NODE_EVENT     NodeType = "event"
	NODE_END       NodeType = "end"
)

type TriggerType string

const (
	TRIGGER_KEYWORD     TriggerType = "keyword"
	TRIGGER_NEW_CONTACT TriggerType = "new_contact"
)

const DefaultHandle = "default"

type FlowDefinition struct {
	Id           string      `json:"id"`
	Name         string      `json:"name"`
	Active       bool        `json:"active"`
	TriggerType  TriggerType `json:"triggerType"`
	TriggerValue string      `json:"triggerValue"`
	Priority     int         `json:"priority"`
	Nodes        []Node      `json:"nodes"`
	Edges        []Edge      `json:"edges"`
}

type Node struct {
	Id      string   `json:"id"`
	Type    NodeType `json:"type"`
	Subtype string   `json:"subtype,omitempty"`
	Data    NodeData `json:"data"`
}

type NodeData struct {
	Content      string        `json:"content,omitempty"`
	DelaySeconds int           `json:"delaySeconds,omitempty"`
	Seconds      int           `json:"seconds,omitempty"`
	MediaType    string        `json:"mediaType,omitempty"`
	MediaUrl     string        `json:"mediaUrl,omitempty"`
	Keyword      string        `json:"keyword,omitempty"`
	IntentRoutes []IntentRoute `json:"intentRoutes,omitempty"`
	Timeout      int           `json:"timeout,omitempty"`
	Conditions   []Condition   `json:"conditions,omitempty"`
	Message      string        `json:"message,omitempty"`
	Tag          string        `json:"tag,omitempty"`
	Status       int           `json:"status,omitempty"`
	Url          string        `json:"url,omitempty"`
	EventId      string        `json:"eventId,omitempty"`
	EventKey     string        `json:"eventKey,omitempty"`
	EventName    string        `json:"eventName,omitempty"`
}

type IntentRoute struct {
	Id      string `json:"id"`
	Label   string `json:"label"`
	Phrases string `json:"phrases"`
}

// SplitPhrases returns the non-empty raw phrases of the route. The stored
// value is a single delimiter-separated string edited in the flow builder.
func (r IntentRoute) SplitPhrases() []string {
	raw := strings.FieldsFunc(r.Phrases, func(c rune) bool {
		return c == ';' || c == ',' || c == '\n' || c == '|'
	})
	phrases := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if len(p) > 0 {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

type Condition struct {
	Value  string `json:"value"`
	Handle string `json:"handle,omitempty"`
}

type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Handle returns the edge's source handle, empty canonicalized to "default".
func (e Edge) Handle() string {
	if len(strings.TrimSpace(e.SourceHandle)) == 0 {
		return DefaultHandle
	}
	return e.SourceHandle
}

func (f *FlowDefinition) Node(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Id == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

func (f *FlowDefinition) EdgesFrom(nodeId string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeId {
			out = append(out, e)
		}
	}
	return out
}

func (f *FlowDefinition) HasIncomingEdge(nodeId string) bool {
	for _, e := range f.Edges {
		if e.Target == nodeId {
			return true
		}
	}
	return false
}
