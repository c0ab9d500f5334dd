package project

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

// seedHash returns a stable 64-bit hash of (project, service), the single
// deterministic-synthesis primitive spec §9 requires every other identity
// derive from.
func seedHash(project, service string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(project))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(service))
	return h.Sum64()
}

// podUID derives a stable Kubernetes UID from the seed hash via a
// namespaced MD5 UUID (RFC 4122 version 3) — deterministic for identical
// input, opaque otherwise, and already the shape client libraries expect
// for metadata.uid.
func podUID(project, service string) string {
	seed := seedHash(project, service)
	name := fmt.Sprintf("%s/%s/%d", project, service, seed)
	return uuid.NewMD5(uuid.Nil, []byte(name)).String()
}

// clusterIP derives a stable address in the 10.96.0.0/16 range Kubernetes
// conventionally reserves for service cluster IPs.
func clusterIP(project, service string) string {
	h := seedHash(project, service)
	return fmt.Sprintf("10.96.%d.%d", (h>>8)&0xFF, h&0xFF)
}

// podIP derives a stable address in the 10.244.0.0/16 range, the common
// default pod-network CIDR, distinct from clusterIP's seed by salting the
// hash input.
func podIP(project, service string) string {
	h := seedHash(project, service+"#pod")
	return fmt.Sprintf("10.244.%d.%d", (h>>8)&0xFF, h&0xFF)
}

// hostIP derives a stable loopback-range address standing in for the node
// the synthetic pod would be scheduled on.
func hostIP(project, service string) string {
	h := seedHash(project, service+"#host")
	return fmt.Sprintf("172.18.%d.%d", (h>>8)&0xFF, h&0xFF)
}
