package project

// FacadeLabel marks the façade's own service so the projector can exclude
// it from every list response (spec §9 "Exclusion of the façade from its
// own listings"). The injection planner (pkg/inject) applies this label to
// the service it adds for the façade itself.
const FacadeLabel = "h2c.io/facade"

// AppLabel is the label every synthetic resource carries in addition to
// whatever labels the compose service declared (spec §3 "Labels").
const AppLabel = "app"

// IsFacade reports whether a compose-declared label set marks its owning
// service as the façade itself.
func IsFacade(labels map[string]string) bool {
	return labels[FacadeLabel] == "true"
}

// mergeLabels returns app=<service> plus the service's declared labels,
// declared labels never overriding the app label.
func mergeLabels(service string, declared map[string]string) map[string]string {
	out := make(map[string]string, len(declared)+1)
	for k, v := range declared {
		out[k] = v
	}
	out[AppLabel] = service
	return out
}
