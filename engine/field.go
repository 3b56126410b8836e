package engine

import (
	"fmt"
	"regexp"
)

// Field names an engine setting.
type Field int

// Engine settings, with the type [Engine.Set] accepts and [Engine.Get] returns.
const (
	MaxScanSize      Field = iota // uint64, bytes
	MaxFileSize                   // uint64, bytes
	MaxRecursion                  // uint32
	MaxFiles                      // uint32
	MinCCCount                    // uint32
	MinSSNCount                   // uint32
	PUACategories                 // string
	DBVersion                     // uint32, read-only
	DBTime                        // uint32, Unix seconds, read-only
	PartialThreshold              // uint64, bytes

	numFields
)

var fieldNames = [...]string{
	MaxScanSize:      "MaxScanSize",
	MaxFileSize:      "MaxFileSize",
	MaxRecursion:     "MaxRecursion",
	MaxFiles:         "MaxFiles",
	MinCCCount:       "MinCCCount",
	MinSSNCount:      "MinSSNCount",
	PUACategories:    "PUACategories",
	DBVersion:        "DBVersion",
	DBTime:           "DBTime",
	PartialThreshold: "PartialThreshold",
}

func (f Field) String() string {
	if f >= 0 && f < numFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// ParseField returns the Field with the given name.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return -1, false
}

// Categories must be a dotted list: ".Cat1.Cat2.".
var puaPattern = regexp.MustCompile(`^(\.[A-Za-z0-9]+)+\.$`)
