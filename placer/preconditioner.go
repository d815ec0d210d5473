package placer

import "github.com/katalvlaran/vlsiflow/geom"

// Preconditioner rescales a gradient before the Nesterov update is applied.
// The identity preconditioner (used by default) leaves the gradient
// untouched; this interface exists so a future non-identity preconditioner
// (e.g. a diagonal Hessian approximation) has an explicit, testable seam,
// mirroring original_source's solver/preconditioner.rs trait stub which
// the distilled spec never names directly.
type Preconditioner interface {
	// Apply scales grad in place.
	Apply(grad []geom.Point)
}

// IdentityPreconditioner leaves the gradient unchanged.
type IdentityPreconditioner struct{}

// Apply is a no-op.
func (IdentityPreconditioner) Apply(grad []geom.Point) {}
