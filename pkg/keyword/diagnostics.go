package keyword

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/logger"
	"github.com/devicelab-dev/uiscope/pkg/report"
)

// CaptureOnFailure returns a hook that writes a failure record, a
// screenshot and the page source into dir, named by the failure ID.
// Diagnostics that cannot be collected are noted in the record. A nil d
// writes the record alone.
func CaptureOnFailure(d core.Diagnoser, dir string) FailureHook {
	return func(ctx context.Context, keyword string, err error) {
		id := uuid.New()
		var h *HandledError
		if errors.As(err, &h) {
			id = h.ID
			err = h.Err
		}
		f := report.NewFailure(id.String(), keyword, err)

		var shot []byte
		var source string
		if d != nil {
			var derr error
			if shot, derr = d.Screenshot(ctx); derr != nil {
				f.Problems = append(f.Problems, "screenshot: "+derr.Error())
			}
			if source, derr = d.Source(ctx); derr != nil {
				f.Problems = append(f.Problems, "source: "+derr.Error())
			}
		}

		if werr := report.Write(dir, &f, shot, source); werr != nil {
			logger.Warn("failed to write diagnostics for %s: %v", keyword, werr)
			return
		}
		logger.Info("diagnostics for %s written to %s (%s)", keyword, dir, f.ID)
	}
}

// UseDefaultDiagnostics installs CaptureOnFailure over the library's
// diagnoser, writing into dir.
func (l *Library) UseDefaultDiagnostics(dir string) {
	l.SetRunOnFailure(CaptureOnFailure(l.diag, dir))
}
