package apiserver

import (
	"encoding/json"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"

	"github.com/h2c-io/h2c-api/pkg/apierr"
)

// writeJSON writes v as the JSON body with the content-type spec.md §4.6
// "Serialization" requires ("application/json").
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Errorf("apiserver: failed to encode response: %v", err)
	}
}

// writeError renders err as a Kubernetes Status body (spec.md §7), wrapping
// anything that is not already an *apierr.Error as a 500 Internal error.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.Internal(err.Error())
	}
	writeJSON(w, int(apiErr.Code()), apiErr.Status)
}

// listMeta builds the metadata.resourceVersion field every list envelope
// carries (spec.md §4.6).
func listMeta(resourceVersion string) metav1.ListMeta {
	return metav1.ListMeta{ResourceVersion: resourceVersion}
}
