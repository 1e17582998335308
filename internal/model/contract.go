package model

// Visibility values as written in Solidity.
const (
	VisibilityPublic   = "public"
	VisibilityExternal = "external"
	VisibilityInternal = "internal"
	VisibilityPrivate  = "private"
)

// State mutability values as written in Solidity. Functions without an
// explicit keyword are nonpayable.
const (
	MutabilityView       = "view"
	MutabilityPure       = "pure"
	MutabilityPayable    = "payable"
	MutabilityNonPayable = "nonpayable"
)

// ParsedContract is one scanned source unit. It is produced by the parser and
// is read-only for every detector.
type ParsedContract struct {
	Source    string     `json:"source"`
	Pragma    string     `json:"pragma"`
	Contracts []Contract `json:"contracts"`
}

type Contract struct {
	Name           string          `json:"name"`
	Inherits       []string        `json:"inherits"`
	StateVariables []StateVariable `json:"stateVariables"`
	Functions      []Function      `json:"functions"`
	// Modifiers holds modifier definitions. They are never entry points.
	Modifiers []Function `json:"modifiers"`
	// Using lists the libraries attached with using-for directives.
	Using []string `json:"using"`
}

type StateVariable struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Function struct {
	// Name is empty for constructors and anonymous fallback functions.
	Name            string      `json:"name"`
	Visibility      string      `json:"visibility"`
	StateMutability string      `json:"stateMutability"`
	Modifiers       []string    `json:"modifiers"`
	Parameters      []Parameter `json:"parameters"`
	Body            string      `json:"body"`
	LineStart       int         `json:"lineStart"`
}

// IsEntryPoint reports whether fn can be called from outside the contract.
func (fn Function) IsEntryPoint() bool {
	return fn.Visibility == VisibilityPublic || fn.Visibility == VisibilityExternal
}

// MutatesState reports whether fn may write storage (neither view nor pure).
func (fn Function) MutatesState() bool {
	return fn.StateMutability != MutabilityView && fn.StateMutability != MutabilityPure
}

func (fn Function) IsConstructor() bool {
	return fn.Name == "" || fn.Name == "constructor"
}

// HasParameter reports whether name is one of fn's parameters.
func (fn Function) HasParameter(name string) bool {
	for _, p := range fn.Parameters {
		if p.Name != "" && p.Name == name {
			return true
		}
	}
	return false
}

// DisplayName returns the function name, or "constructor" for unnamed functions.
func (fn Function) DisplayName() string {
	if fn.Name == "" {
		return "constructor"
	}
	return fn.Name
}
