package node

import "github.com/configurable-agents/engine/declaration"

// GateAction is the result of one quality gate firing against a node's
// accumulated metrics (spec §4.8 step 6).
type GateAction struct {
	NodeID string
	Metric string
	Action string // WARN | FAIL | BLOCK_DEPLOY
}

// EvaluateGates checks every gate scoped to nodeID (or unscoped, applying
// to all nodes) against metrics and returns the actions that fired.
func EvaluateGates(gates []declaration.GateSpec, nodeID string, metrics Metrics) []GateAction {
	var fired []GateAction
	for _, g := range gates {
		if g.NodeID != "" && g.NodeID != nodeID {
			continue
		}
		value, ok := metricValue(g.Metric, metrics)
		if !ok {
			continue
		}
		if Compare(value, g.Operator, g.Threshold) {
			fired = append(fired, GateAction{NodeID: nodeID, Metric: g.Metric, Action: g.Action})
		}
	}
	return fired
}

// EvaluateAggregateGate checks a single gate against an already-computed
// aggregate value (spec §4.13: "gates defined on experiment-level metrics
// are evaluated against aggregates using the same action semantics as node
// gates"). Exported so experiment.Evaluate can reuse the same operator
// comparison node gates use, without duplicating it.
func EvaluateAggregateGate(g declaration.GateSpec, value float64) (GateAction, bool) {
	if !Compare(value, g.Operator, g.Threshold) {
		return GateAction{}, false
	}
	return GateAction{NodeID: g.NodeID, Metric: g.Metric, Action: g.Action}, true
}

func metricValue(metric string, m Metrics) (float64, bool) {
	switch metric {
	case "cost_usd":
		return m.CostUSD, true
	case "input_tokens":
		return float64(m.InputTokens), true
	case "output_tokens":
		return float64(m.OutputTokens), true
	case "duration_ms":
		return float64(m.DurationMS), true
	case "attempts":
		return float64(m.Attempts), true
	default:
		return 0, false
	}
}

// Compare applies one of the gate comparison operators (gt, gte, lt, lte,
// eq) to value against threshold.
func Compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "gte":
		return value >= threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	default:
		return false
	}
}

// Action kinds a fired gate can request of the run.
const (
	ActionWarn        = "WARN"
	ActionFail        = "FAIL"
	ActionBlockDeploy = "BLOCK_DEPLOY"
)
