package scan

import (
	"errors"

	"github.com/quay/scancore"
)

// Aggregate maps the end of a walk to exactly one Result.
//
// An abort always wins over detections collected earlier in the walk, so a
// Result never carries both a label and an error code.
func (w *walk) aggregate(err error) (scancore.Result, error) {
	res := scancore.Result{
		Scanned: int64(w.bytes.Load()),
		Skipped: int(w.skipped.Load()),
	}
	switch {
	case errors.Is(err, nil), errors.Is(err, errFound):
		ls := w.detections()
		if len(ls) == 0 {
			res.Code = scancore.Clean
			return res, nil
		}
		res.Code = scancore.Virus
		res.Label = ls[0]
		res.Labels = ls
		return res, nil
	}
	res.Code = scancore.CodeOf(err)
	if res.Code >= 0 {
		res.Code = scancore.EIO
	}
	return res, &scancore.Error{Op: `scan`, Code: res.Code, Inner: err}
}

// Aborted is the Result for a scan that couldn't start.
func aborted(err error) (scancore.Result, error) {
	c := scancore.CodeOf(err)
	if c >= 0 {
		c = scancore.EIO
		err = &scancore.Error{Op: `scan`, Code: c, Inner: err}
	}
	return scancore.Result{Code: c}, err
}
