// Package eligibility decides, per requested output, whether the original
// source file can be copied verbatim instead of being re-encoded.
//
// Decide is pure: it reads only its arguments, so decisions for different
// outputs of one call may be computed concurrently.
package eligibility

import (
	"path/filepath"

	"github.com/AnyUserName/derivimg/internal/dimension"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/source"
)

// Action is what the materializer should do for one output.
type Action string

const (
	Copy    Action = "copy"
	Process Action = "process"
)

// Reason is the diagnostic tag attached to a decision.
type Reason string

const (
	ReasonOptimizationDisabled Reason = "optimization-disabled"
	ReasonNotFileAddressable   Reason = "not-file-addressable"
	ReasonWidthMismatch        Reason = "width-mismatch"
	ReasonFormatMismatch       Reason = "format-mismatch"
	ReasonTransformPresent     Reason = "transform-present"
	ReasonForceReprocess       Reason = "force-reprocess"
	ReasonSelfCopyGuard        Reason = "self-copy-guard"
	ReasonEligible             Reason = "eligible"
)

// Reasons lists every reason in evaluation order, eligible last.
var Reasons = []Reason{
	ReasonOptimizationDisabled,
	ReasonNotFileAddressable,
	ReasonWidthMismatch,
	ReasonFormatMismatch,
	ReasonTransformPresent,
	ReasonForceReprocess,
	ReasonSelfCopyGuard,
	ReasonEligible,
}

// Decision is the outcome for a single output.
type Decision struct {
	Action Action
	Reason Reason
}

// Context holds the call-scoped, read-only inputs shared by every output
// of one call.
type Context struct {
	// Optimize enables skip-original-processing.
	Optimize bool
	// TransformPresent is set when the call carries a custom pixel
	// transform; it disables copying for every output of the call.
	TransformPresent bool
	// ForceReprocess always wins and forces Process.
	ForceReprocess bool
}

// Request is one resolved (width, format) output.
type Request struct {
	Width  dimension.Resolved
	Format format.ID
	// DestPath is where the output will be written.
	DestPath string
}

// Decide returns Copy only when every condition holds; otherwise Process
// with the reason of the first failing condition.
func Decide(src *source.Descriptor, ctx Context, req Request) Decision {
	switch {
	case !ctx.Optimize:
		return process(ReasonOptimizationDisabled)
	case src == nil || !src.FileAddressable():
		return process(ReasonNotFileAddressable)
	// An explicit width equal to native is the same request as "original".
	case req.Width.Width != src.Width:
		return process(ReasonWidthMismatch)
	case !format.Equivalent(string(req.Format), string(src.Format)):
		return process(ReasonFormatMismatch)
	case ctx.TransformPresent:
		return process(ReasonTransformPresent)
	case ctx.ForceReprocess:
		return process(ReasonForceReprocess)
	case samePath(req.DestPath, src.Path):
		return process(ReasonSelfCopyGuard)
	}
	return Decision{Action: Copy, Reason: ReasonEligible}
}

func process(r Reason) Decision {
	return Decision{Action: Process, Reason: r}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
