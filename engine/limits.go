package engine

// Default limits.
const (
	DefaultMaxScanSize      = 100 << 20
	DefaultMaxFileSize      = 25 << 20
	DefaultMaxRecursion     = 16
	DefaultMaxFiles         = 10000
	DefaultMinCCCount       = 3
	DefaultMinSSNCount      = 3
	DefaultPartialThreshold = 0
)

// Limits is a snapshot of the resource bounds in effect for one scan.
//
// A zero limit is unlimited. For the structured data counts, a zero minimum
// disables the heuristic.
type Limits struct {
	MaxScanSize      uint64
	MaxFileSize      uint64
	PartialThreshold uint64
	MaxRecursion     uint32
	MaxFiles         uint32
	MinCCCount       uint32
	MinSSNCount      uint32
}

// DefaultLimits returns the limits a new Engine starts with.
func DefaultLimits() Limits {
	return Limits{
		MaxScanSize:      DefaultMaxScanSize,
		MaxFileSize:      DefaultMaxFileSize,
		MaxRecursion:     DefaultMaxRecursion,
		MaxFiles:         DefaultMaxFiles,
		MinCCCount:       DefaultMinCCCount,
		MinSSNCount:      DefaultMinSSNCount,
		PartialThreshold: DefaultPartialThreshold,
	}
}
