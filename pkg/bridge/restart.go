package bridge

import (
	"context"
	"net/http"
)

// RestartResult reports whether a PATCH produced a real container
// stop+start or was merely accepted with no side effect (spec.md §4.5
// "Other PATCH bodies are accepted and reported back with no side
// effect").
type RestartResult struct {
	Restarted bool
}

// Restart triggers a container stop+start for the named deployment's
// single workload service when patch carries the standard rollout-restart
// template-annotation shape; any other patch body is a no-op success.
func (b *Bridge) Restart(ctx context.Context, project, service string, patch []byte) (RestartResult, error) {
	if !isRestartPatch(patch) {
		return RestartResult{Restarted: false}, nil
	}

	container, err := b.resolveContainer(ctx, project, service)
	if err != nil {
		return RestartResult{}, err
	}

	resp, err := b.do(ctx, http.MethodPost, "/containers/"+container+"/restart", nil)
	if err != nil {
		return RestartResult{}, err
	}
	resp.Body.Close()
	return RestartResult{Restarted: true}, nil
}
