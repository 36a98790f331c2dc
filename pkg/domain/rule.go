package domain

// RuleID uniquely identifies a registered rule within one top-level
// transform's shared pending-rule list.
type RuleID uint64

// RuleKind distinguishes the two rule shapes the engine supports. Both
// exist per the redesign notes in SPEC_FULL.md: pending rules are the
// primary, fixed-point-driven mechanism; transform rules are the thin,
// eager special case evaluated once per walk visit.
type RuleKind int

const (
	RuleKindTransform RuleKind = iota
	RuleKindPending
)

// DependencyPassState tracks which passes have already run for a
// dependency path, so a second Full pass is a no-op and a second
// Discovery pass is a no-op (Full subsumes Discovery).
type DependencyPassState struct {
	Discovery bool
	Full      bool
}

// CacheEntry is the dependency cache's unit of storage, stored under
// cache.Key: the dependency's resolved path plus a hash of its content.
type CacheEntry struct {
	Macros            []Macro
	PendingRuleCount  int // not filled in by LoadDependency; a cache hit re-parses OutputText and re-issues materialize, and re-registers neither macros nor pending rules
	OutputText        string
	ShouldMaterialize bool
	IsAuthoritative   bool
}

// Diagnostic codes, enumerated in SPEC_FULL.md §6.
const (
	CodeBraceNesting    = "UPP001"
	CodeUnterminated    = "UPP002"
	CodeBodySyntax      = "UPP003"
	CodeUnknownMacro    = "UPP004"
	CodeArity           = "UPP005"
	CodeResolution      = "UPP006"
	CodeConsumption     = "UPP007"
	CodeMacroRuntime    = "UPP008"
	CodeIterationCap    = "UPP009"
	CodeDependencyMiss  = "UPP010"
	CodeDepthExceeded   = "UPP011"
)
