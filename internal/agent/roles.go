package agent

// Role identifies one fixed analytical persona in the pipeline.
type Role string

const (
	RoleMarketStructure   Role = "market_structure"
	RoleTrend             Role = "trend"
	RoleMomentum          Role = "momentum"
	RoleVolatility        Role = "volatility"
	RoleVolumeFlow        Role = "volume_flow"
	RoleCandlePatterns    Role = "candle_patterns"
	RoleSupportResistance Role = "support_resistance"
	RoleRangeTrading      Role = "range_trading"
	RoleRisk              Role = "risk"
	RoleContrarian        Role = "contrarian"
	RoleTriage            Role = "triage"

	// RoleStrategist merges all analytical outputs into one master plan.
	// It runs once per deep run, outside the analytical sequence.
	RoleStrategist Role = "strategist"

	// RoleAuditor checks outputs against the snapshot. Separate contract;
	// it is not part of an analytical sequence.
	RoleAuditor Role = "auditor"
)

// ScanSequence is the fast triage pipeline: four roles, ending in triage.
var ScanSequence = []Role{
	RoleTrend,
	RoleMomentum,
	RoleVolatility,
	RoleTriage,
}

// DeepSequence is the full analytical pipeline: eleven roles, a superset of
// ScanSequence in the same relative order, ending in the same triage role.
var DeepSequence = []Role{
	RoleMarketStructure,
	RoleTrend,
	RoleMomentum,
	RoleVolatility,
	RoleVolumeFlow,
	RoleCandlePatterns,
	RoleSupportResistance,
	RoleRangeTrading,
	RoleRisk,
	RoleContrarian,
	RoleTriage,
}

// fullSnapshotRole is the one analytical role that receives raw candle
// arrays instead of the mini snapshot.
const fullSnapshotRole = RoleCandlePatterns

// SequenceFor returns the role sequence for a run mode. Unknown modes get
// the scan sequence.
func SequenceFor(mode string) []Role {
	if mode == "deep" {
		return DeepSequence
	}
	return ScanSequence
}

// personas maps each role to the one-line persona used in its system prompt.
var personas = map[Role]string{
	RoleMarketStructure:   "You analyze overall market structure: higher highs/lows, swing points, and which timeframes agree.",
	RoleTrend:             "You analyze trend direction and strength across the provided timeframes.",
	RoleMomentum:          "You analyze momentum using the RSI and MACD histogram values in the snapshot.",
	RoleVolatility:        "You analyze volatility conditions using the average range and volatility flags in the snapshot.",
	RoleVolumeFlow:        "You analyze volume behavior: expansion, contraction, and whether volume confirms price moves.",
	RoleCandlePatterns:    "You analyze the raw candle arrays for classical candlestick patterns and notable single-bar events.",
	RoleSupportResistance: "You identify support and resistance levels from the highs and lows in the snapshot.",
	RoleRangeTrading:      "You assess whether price is range-bound and, if so, where the range edges sit.",
	RoleRisk:              "You are a risk manager: identify what could go wrong with acting on this snapshot right now.",
	RoleContrarian:        "You argue the opposite of the consensus so far; find what the other analyses may have missed.",
	RoleTriage:            "You triage the findings so far into a setup quality score and a recommended posture.",
}
