package plugins

type catalogEntry struct {
	Description string
	SWC         string
	Confidence  float64
}

var catalog = map[Kind]catalogEntry{
	KindReentrancy: {
		Description: "External call made before a state update in an unguarded entry point (checks-effects-interactions violation)",
		SWC:         "SWC-107",
		Confidence:  0.75,
	},
	KindAccessControl: {
		Description: "tx.origin authorization and sensitive operations reachable without access control",
		SWC:         "SWC-105",
		Confidence:  0.7,
	},
	KindIntegerOverflow: {
		Description: "Unchecked arithmetic on user-influenced or storage values",
		SWC:         "SWC-101",
		Confidence:  0.6,
	},
	KindOracleManipulation: {
		Description: "Stale, unvalidated, single-source or spot-price oracle reads",
		Confidence:  0.6,
	},
	KindFlashLoan: {
		Description: "Prices derived from manipulable on-chain balances or reserves",
		Confidence:  0.55,
	},
	KindStateModification: {
		Description: "Critical state variables written without access control or input validation",
		SWC:         "SWC-105",
		Confidence:  0.6,
	},
}

type swcEntry struct {
	Title string
}

// swcRegistry holds the SWC entries referenced by the detectors.
var swcRegistry = map[string]swcEntry{
	"SWC-101": {Title: "Integer Overflow and Underflow"},
	"SWC-105": {Title: "Unprotected Ether Withdrawal"},
	"SWC-106": {Title: "Unprotected SELFDESTRUCT Instruction"},
	"SWC-107": {Title: "Reentrancy"},
	"SWC-115": {Title: "Authorization through tx.origin"},
}

// SWCTitle returns the registry title for id, or "".
func SWCTitle(id string) string {
	return swcRegistry[id].Title
}

// SWCURL links id to its registry page; empty for an empty id.
func SWCURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://swcregistry.io/docs/" + id
}
