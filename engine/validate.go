package engine

import (
	"fmt"

	"github.com/zapflow/zapflow/model"
)

// ValidateFlow checks a definition before it is saved: duplicate node ids,
// dangling edges and malformed intent routes are authoring errors the engine
// should never have to tolerate at run time.
func ValidateFlow(flow *model.FlowDefinition) error {
	if len(flow.Id) == 0 {
		return fmt.Errorf("flow id is required")
	}
	if len(flow.Nodes) == 0 {
		return fmt.Errorf("flow %s has no nodes", flow.Id)
	}
	seen := map[string]bool{}
	for _, node := range flow.Nodes {
		if len(node.Id) == 0 {
			return fmt.Errorf("flow %s has a node without id", flow.Id)
		}
		if seen[node.Id] {
			return fmt.Errorf("node id %s is duplicate", node.Id)
		}
		seen[node.Id] = true
		routeIds := map[string]bool{}
		for _, route := range node.Data.IntentRoutes {
			if len(route.Id) == 0 {
				return fmt.Errorf("node %s has an intent route without id", node.Id)
			}
			if routeIds[route.Id] {
				return fmt.Errorf("node %s has duplicate intent route id %s", node.Id, route.Id)
			}
			routeIds[route.Id] = true
			if len(route.SplitPhrases()) == 0 {
				return fmt.Errorf("intent route %s on node %s has no phrases", route.Id, node.Id)
			}
		}
	}
	for _, edge := range flow.Edges {
		if !seen[edge.Source] {
			return fmt.Errorf("edge references unknown source node %s", edge.Source)
		}
		if !seen[edge.Target] {
			return fmt.Errorf("edge references unknown target node %s", edge.Target)
		}
	}
	return nil
}
