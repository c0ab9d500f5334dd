package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// LogOptions mirrors the query parameters spec.md §4.5 requires the log
// tail operation to support.
type LogOptions struct {
	TailLines  int
	Timestamps bool
	Follow     bool
	Previous   bool // supplements the distillation: most runtimes support it as a passthrough
}

// Logs streams stdout/stderr for the pod named "<service>-0" in project,
// resolving it to the runtime's container name first (spec.md §4.5 "Log
// tail"). The returned ReadCloser must be closed by the caller; Follow
// streams use HTTP chunked transfer and stop when the caller closes it or
// the container exits.
func (b *Bridge) Logs(ctx context.Context, project, service string, opts LogOptions) (io.ReadCloser, error) {
	container, err := b.resolveContainer(ctx, project, service)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("stdout", "true")
	q.Set("stderr", "true")
	if opts.Follow {
		q.Set("follow", "true")
	}
	if opts.Timestamps {
		q.Set("timestamps", "true")
	}
	if opts.TailLines > 0 {
		q.Set("tail", fmt.Sprintf("%d", opts.TailLines))
	}
	if opts.Previous {
		q.Set("previous", "true")
	}

	resp, err := b.do(ctx, http.MethodGet, "/containers/"+container+"/logs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
