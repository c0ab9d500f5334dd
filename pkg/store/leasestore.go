package store

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/h2c-io/h2c-api/pkg/apierr"
)

// leaseKey identifies a lease by (namespace, name), the store's lookup
// contract (spec.md §4.4 "In-memory mapping keyed by (namespace, name)").
type leaseKey struct {
	namespace string
	name      string
}

// LeaseStore is an in-memory, mutex-guarded Lease table with a process-
// global monotonic resourceVersion counter (spec.md §4.4, §5).
//
// All mutations are serialised behind one mutex rather than per-key locks:
// the store is small and request-rate-bound, and a single lock keeps the
// resourceVersion counter and the transition bookkeeping trivially
// consistent with each other.
type LeaseStore struct {
	mu      sync.Mutex
	leases  map[leaseKey]coordinationv1.Lease
	counter atomic.Int64
}

// NewLeaseStore returns an empty store with its resourceVersion counter
// starting at 0; the first mutation draws 1.
func NewLeaseStore() *LeaseStore {
	return &LeaseStore{leases: map[leaseKey]coordinationv1.Lease{}}
}

func (s *LeaseStore) nextVersion() string {
	return strconv.FormatInt(s.counter.Add(1), 10)
}

// Create inserts lease if no lease with its (namespace, name) exists
// (spec.md §4.4 CREATE). The incoming object's resourceVersion is ignored;
// leaseTransitions starts at the body's value or 0.
func (s *LeaseStore) Create(namespace string, lease coordinationv1.Lease) (coordinationv1.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := leaseKey{namespace: namespace, name: lease.Name}
	if _, exists := s.leases[key]; exists {
		return coordinationv1.Lease{}, apierr.AlreadyExists("Lease", namespace, lease.Name)
	}

	lease.Namespace = namespace
	lease.ResourceVersion = s.nextVersion()
	if lease.Spec.LeaseTransitions == nil {
		zero := int32(0)
		lease.Spec.LeaseTransitions = &zero
	}
	s.leases[key] = lease
	return lease, nil
}

// Get returns the lease at (namespace, name), or a NotFound error
// (spec.md §4.4 GET).
func (s *LeaseStore) Get(namespace, name string) (coordinationv1.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease, ok := s.leases[leaseKey{namespace: namespace, name: name}]
	if !ok {
		return coordinationv1.Lease{}, apierr.NotFound("Lease", namespace, name)
	}
	return lease, nil
}

// Update fully replaces the stored lease (spec.md §4.4 UPDATE/PUT). If
// incoming carries a resourceVersion that differs from the one stored, the
// update is rejected with Conflict. holderIdentity changing from a
// previous non-null value increments leaseTransitions; renewTime defaults
// to now when the body omits it.
func (s *LeaseStore) Update(namespace, name string, incoming coordinationv1.Lease) (coordinationv1.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := leaseKey{namespace: namespace, name: name}
	current, ok := s.leases[key]
	if !ok {
		return coordinationv1.Lease{}, apierr.NotFound("Lease", namespace, name)
	}

	if incoming.ResourceVersion != "" && incoming.ResourceVersion != current.ResourceVersion {
		return coordinationv1.Lease{}, apierr.Conflict("Lease", namespace, name,
			"the object has been modified; please apply your changes to the latest version and try again")
	}

	updated := incoming
	updated.Name = name
	updated.Namespace = namespace
	updated.ResourceVersion = s.nextVersion()

	transitions := int32(0)
	if current.Spec.LeaseTransitions != nil {
		transitions = *current.Spec.LeaseTransitions
	}
	holderChanged := current.Spec.HolderIdentity != nil &&
		(updated.Spec.HolderIdentity == nil || *updated.Spec.HolderIdentity != *current.Spec.HolderIdentity)
	if holderChanged {
		transitions++
	}
	updated.Spec.LeaseTransitions = &transitions

	if updated.Spec.RenewTime == nil {
		now := metav1.NowMicro()
		updated.Spec.RenewTime = &now
	}

	s.leases[key] = updated
	return updated, nil
}

// Delete removes the lease at (namespace, name), or returns NotFound
// (spec.md §4.4 DELETE).
func (s *LeaseStore) Delete(namespace, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := leaseKey{namespace: namespace, name: name}
	if _, ok := s.leases[key]; !ok {
		return apierr.NotFound("Lease", namespace, name)
	}
	delete(s.leases, key)
	return nil
}

// List returns every lease in namespace, in name order, for the caller to
// further filter by label selector (spec.md §4.4 LIST; selector matching
// itself lives in pkg/apiserver so Lease and Pod listing share one
// implementation).
func (s *LeaseStore) List(namespace string) []coordinationv1.Lease {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]coordinationv1.Lease, 0, len(s.leases))
	for key, lease := range s.leases {
		if key.namespace == namespace {
			out = append(out, lease)
		}
	}
	sortLeasesByName(out)
	return out
}

// ResourceVersion returns the store's current global counter value, used
// for list-response metadata.resourceVersion (spec.md §4.6 Serialization).
func (s *LeaseStore) ResourceVersion() string {
	return strconv.FormatInt(s.counter.Load(), 10)
}

func sortLeasesByName(leases []coordinationv1.Lease) {
	sort.Slice(leases, func(i, j int) bool { return leases[i].Name < leases[j].Name })
}
