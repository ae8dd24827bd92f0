package toolloop

import (
	"context"

	"github.com/go-go-golems/librarian/pkg/turns"
)

// Snapshot phases passed to a SnapshotHook.
const (
	PhasePreInference  = "pre_inference"
	PhasePostInference = "post_inference"
	PhasePostTools     = "post_tools"
)

// SnapshotHook receives a copy of the conversation at defined phases of a run.
type SnapshotHook func(ctx context.Context, ts []*turns.Turn, phase string)

type snapshotHookKey struct{}

// WithSnapshotHookContext attaches a snapshot hook to the context.
func WithSnapshotHookContext(ctx context.Context, hook SnapshotHook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, snapshotHookKey{}, hook)
}

// SnapshotHookFromContext returns the snapshot hook attached to the context, if any.
func SnapshotHookFromContext(ctx context.Context) (SnapshotHook, bool) {
	h, ok := ctx.Value(snapshotHookKey{}).(SnapshotHook)
	return h, ok && h != nil
}
