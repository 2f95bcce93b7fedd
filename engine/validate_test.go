package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/model"
)

func validFlow() *model.FlowDefinition {
	return &model.FlowDefinition{
		Id: "f1", Name: "ok",
		Nodes: []model.Node{
			{Id: "a", Type: model.NODE_TRIGGER},
			{Id: "b", Type: model.NODE_MESSAGE, Data: model.NodeData{Content: "oi"}},
		},
		Edges: []model.Edge{{Source: "a", Target: "b"}},
	}
}

func TestValidateFlow(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"valid flow": func(t *testing.T) {
			require.NoError(t, ValidateFlow(validFlow()))
		},
		"missing id": func(t *testing.T) {
			flow := validFlow()
			flow.Id = ""
			require.Error(t, ValidateFlow(flow))
		},
		"no nodes": func(t *testing.T) {
			flow := validFlow()
			flow.Nodes = nil
			require.Error(t, ValidateFlow(flow))
		},
		"duplicate node id": func(t *testing.T) {
			flow := validFlow()
			flow.Nodes = append(flow.Nodes, model.Node{Id: "a", Type: model.NODE_END})
			require.Error(t, ValidateFlow(flow))
		},
		"edge to unknown node": func(t *testing.T) {
			flow := validFlow()
			flow.Edges = append(flow.Edges, model.Edge{Source: "b", Target: "ghost"})
			require.Error(t, ValidateFlow(flow))
		},
		"intent route without phrases": func(t *testing.T) {
			flow := validFlow()
			flow.Nodes[0].Data.IntentRoutes = []model.IntentRoute{{Id: "r1", Phrases: " ; "}}
			require.Error(t, ValidateFlow(flow))
		},
		"duplicate intent route id": func(t *testing.T) {
			flow := validFlow()
			flow.Nodes[0].Data.IntentRoutes = []model.IntentRoute{
				{Id: "r1", Phrases: "oi"},
				{Id: "r1", Phrases: "tchau"},
			}
			require.Error(t, ValidateFlow(flow))
		},
	} {
		t.Run(scenario, fn)
	}
}
