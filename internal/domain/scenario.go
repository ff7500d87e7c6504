package domain

// ScenarioConfig is a named bundle of execution cost assumptions.
// Costs are in basis points of traded value; LagBars delays fills.
type ScenarioConfig struct {
	ScenarioID    string  // "optimistic" | "realistic" | "pessimistic" | "degraded"
	CommissionBps float64 // broker commission
	SlippageBps   float64 // adverse price movement during execution
	LagBars       int     // bars between signal and fill
}

// Scenario ID constants
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioDegraded    = "degraded"
)

// Predefined scenario configurations.
var (
	ScenarioConfigOptimistic = ScenarioConfig{
		ScenarioID:    ScenarioOptimistic,
		CommissionBps: 0,
		SlippageBps:   0,
		LagBars:       0,
	}

	ScenarioConfigRealistic = ScenarioConfig{
		ScenarioID:    ScenarioRealistic,
		CommissionBps: 5,
		SlippageBps:   5,
		LagBars:       1,
	}

	ScenarioConfigPessimistic = ScenarioConfig{
		ScenarioID:    ScenarioPessimistic,
		CommissionBps: 10,
		SlippageBps:   15,
		LagBars:       1,
	}

	ScenarioConfigDegraded = ScenarioConfig{
		ScenarioID:    ScenarioDegraded,
		CommissionBps: 20,
		SlippageBps:   30,
		LagBars:       2,
	}
)

// ScenarioByID returns the predefined scenario for id, or nil.
func ScenarioByID(id string) *ScenarioConfig {
	switch id {
	case ScenarioOptimistic:
		s := ScenarioConfigOptimistic
		return &s
	case ScenarioRealistic:
		s := ScenarioConfigRealistic
		return &s
	case ScenarioPessimistic:
		s := ScenarioConfigPessimistic
		return &s
	case ScenarioDegraded:
		s := ScenarioConfigDegraded
		return &s
	default:
		return nil
	}
}
