package node

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/configurable-agents/engine/declaration"
)

func TestEvaluateGates_Fires(t *testing.T) {
	gates := []declaration.GateSpec{
		{Metric: "cost_usd", Operator: "gt", Threshold: 0.01, Action: ActionWarn},
	}
	actions := EvaluateGates(gates, "n1", Metrics{CostUSD: 0.02})
	assert.Len(t, actions, 1)
	assert.Equal(t, ActionWarn, actions[0].Action)
}

func TestEvaluateGates_ScopedToNode(t *testing.T) {
	gates := []declaration.GateSpec{
		{Metric: "cost_usd", Operator: "gt", Threshold: 0.0, Action: ActionFail, NodeID: "other"},
	}
	actions := EvaluateGates(gates, "n1", Metrics{CostUSD: 1})
	assert.Empty(t, actions)
}

func TestEvaluateGates_NotTriggered(t *testing.T) {
	gates := []declaration.GateSpec{
		{Metric: "cost_usd", Operator: "gt", Threshold: 10, Action: ActionFail},
	}
	actions := EvaluateGates(gates, "n1", Metrics{CostUSD: 1})
	assert.Empty(t, actions)
}

func TestEvaluateGates_UnknownMetricSkipped(t *testing.T) {
	gates := []declaration.GateSpec{
		{Metric: "bogus", Operator: "gt", Threshold: 0, Action: ActionFail},
	}
	actions := EvaluateGates(gates, "n1", Metrics{})
	assert.Empty(t, actions)
}
