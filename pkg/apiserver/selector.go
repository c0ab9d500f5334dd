package apiserver

import (
	"k8s.io/apimachinery/pkg/labels"

	"github.com/h2c-io/h2c-api/pkg/apierr"
)

// parseSelector parses a label selector query parameter using the real
// Kubernetes selector grammar (k8s.io/apimachinery/pkg/labels), rather than
// hand-rolling `key=value`/`key!=value`/conjunction parsing — this keeps
// selector semantics, including malformed-selector 400s, bit-for-bit
// compatible with real client libraries (spec.md §4.6 "Label selector").
// An empty query matches everything.
func parseSelector(raw string) (labels.Selector, *apierr.Error) {
	if raw == "" {
		return labels.Everything(), nil
	}
	sel, err := labels.Parse(raw)
	if err != nil {
		return nil, apierr.BadRequest("invalid label selector: " + err.Error())
	}
	return sel, nil
}
