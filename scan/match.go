package scan

import (
	"context"
	"log/slog"
	"slices"

	"github.com/quay/scancore"
	"github.com/quay/scancore/sigdb"
	"github.com/quay/scancore/structured"
	"github.com/quay/scancore/unpack"
)

func match(ctx context.Context, f *frame) (State, error) {
	w := f.w
	b, err := f.bytes()
	if err != nil {
		return Terminal, err
	}
	all := w.opts.Has(scancore.ScanAllMatches)
	heur := f.heuristics(b)

	// Heuristic hits only count if there's no exact hit on the same object,
	// unless they take precedence.
	var labels []string
	if len(heur) > 0 && w.opts.Has(scancore.ScanHeuristicPrecedence) {
		labels = heur
	} else {
		labels = w.matcher.Scan(b, target(f.family), all)
		if len(labels) == 0 {
			labels = heur
		}
	}
	if len(labels) == 0 {
		return Terminal, nil
	}
	if !all {
		labels = labels[:1]
	}
	slog.InfoContext(ctx, "detection", "family", f.family, "labels", labels)
	if w.found(labels...) {
		return Terminal, errFound
	}
	return Terminal, nil
}

// Heuristics returns the heuristic labels for the object: anomalies its
// unpacker reported, then structured data counts.
func (f *frame) heuristics(b []byte) []string {
	out := slices.Clone(f.anomalies)
	opts, l := f.w.opts, &f.w.limits
	if !opts.Has(scancore.ScanStructured) {
		return out
	}
	var mode structured.Mode
	if opts.Has(scancore.ScanStructuredSSNNormal) {
		mode |= structured.SSNNormal
	}
	if opts.Has(scancore.ScanStructuredSSNStripped) {
		mode |= structured.SSNStripped
	}
	cc, ssn := structured.Count(b, mode)
	if l.MinCCCount != 0 && cc >= int(l.MinCCCount) {
		out = append(out, structured.LabelCreditCard)
	}
	if l.MinSSNCount != 0 && ssn >= int(l.MinSSNCount) {
		out = append(out, structured.LabelSSN)
	}
	return out
}

func target(f unpack.Family) sigdb.Target {
	switch f {
	case unpack.PE:
		return sigdb.TargetPE
	case unpack.OLE2:
		return sigdb.TargetOLE2
	case unpack.HTML:
		return sigdb.TargetHTML
	case unpack.Mail:
		return sigdb.TargetMail
	case unpack.ELF:
		return sigdb.TargetELF
	case unpack.Text:
		return sigdb.TargetText
	}
	return sigdb.TargetAny
}
