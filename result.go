package scancore

// Verdict is the coarse classification of a Result.
type Verdict int

// Verdicts.
const (
	VerdictClean Verdict = iota
	VerdictMatched
	VerdictAborted
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictMatched:
		return "matched"
	case VerdictAborted:
		return "aborted"
	}
	return "???"
}

// Result is the outcome of one top-level scan.
//
// Exactly one of the following holds: Code is [Clean] and Label is empty; Code
// is [Virus] and Label is non-empty; Code is negative and Label is empty.
type Result struct {
	// Label is the first signature name that matched.
	Label string
	// Labels holds every label found, if scanning with ScanAllMatches.
	// Otherwise it's the same as []string{Label}, or nil.
	Labels []string
	// Scanned is the number of bytes attributed to processed objects.
	Scanned int64
	// Skipped is the number of objects not inspected because they exceeded
	// the single-object size limit.
	Skipped int
	Code    Code
}

// Verdict reports the classification.
func (r *Result) Verdict() Verdict {
	switch {
	case r.Code == Virus:
		return VerdictMatched
	case r.Code < 0:
		return VerdictAborted
	}
	return VerdictClean
}

// Err returns an *Error for aborted results, and nil otherwise.
func (r *Result) Err() error {
	if r.Code >= 0 {
		return nil
	}
	return &Error{Op: "scan", Code: r.Code}
}
