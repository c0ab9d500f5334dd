package store

import (
	"testing"

	coordinationv1 "k8s.io/api/coordination/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/h2c-io/h2c-api/pkg/apierr"
)

func holder(id string) *string { return &id }

func TestLeaseStoreCreateGetDelete(t *testing.T) {
	s := NewLeaseStore()

	t.Run("create succeeds and assigns a resourceVersion", func(t *testing.T) {
		lease, err := s.Create("demo", coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Name: "L"},
			Spec:       coordinationv1.LeaseSpec{HolderIdentity: holder("A")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lease.ResourceVersion == "" || lease.ResourceVersion == "0" {
			t.Errorf("expected a non-zero resourceVersion, got %q", lease.ResourceVersion)
		}
	})

	t.Run("duplicate create fails with AlreadyExists", func(t *testing.T) {
		_, err := s.Create("demo", coordinationv1.Lease{ObjectMeta: metav1.ObjectMeta{Name: "L"}})
		apiErr, ok := err.(*apierr.Error)
		if !ok || apiErr.Code() != 409 {
			t.Fatalf("expected 409 AlreadyExists, got %v", err)
		}
	})

	t.Run("get returns the stored lease", func(t *testing.T) {
		lease, err := s.Get("demo", "L")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *lease.Spec.HolderIdentity != "A" {
			t.Errorf("got holder %q, want A", *lease.Spec.HolderIdentity)
		}
	})

	t.Run("get on missing lease returns NotFound", func(t *testing.T) {
		_, err := s.Get("demo", "missing")
		apiErr, ok := err.(*apierr.Error)
		if !ok || apiErr.Code() != 404 {
			t.Fatalf("expected 404 NotFound, got %v", err)
		}
	})

	t.Run("delete then get returns NotFound", func(t *testing.T) {
		if err := s.Delete("demo", "L"); err != nil {
			t.Fatalf("unexpected delete error: %v", err)
		}
		if _, err := s.Get("demo", "L"); err == nil {
			t.Fatal("expected NotFound after delete")
		}
	})

	t.Run("delete on missing lease returns NotFound", func(t *testing.T) {
		err := s.Delete("demo", "gone")
		apiErr, ok := err.(*apierr.Error)
		if !ok || apiErr.Code() != 404 {
			t.Fatalf("expected 404 NotFound, got %v", err)
		}
	})
}

func TestLeaseStoreUpdateVersioningAndTransitions(t *testing.T) {
	s := NewLeaseStore()
	created, err := s.Create("demo", coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{Name: "L"},
		Spec:       coordinationv1.LeaseSpec{HolderIdentity: holder("A")},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	v1 := created.ResourceVersion

	t.Run("update with matching resourceVersion succeeds and bumps it", func(t *testing.T) {
		updated, err := s.Update("demo", "L", coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Name: "L", ResourceVersion: v1},
			Spec:       coordinationv1.LeaseSpec{HolderIdentity: holder("B")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.ResourceVersion == v1 {
			t.Errorf("expected resourceVersion to change from %q", v1)
		}
		if *updated.Spec.LeaseTransitions != 1 {
			t.Errorf("got leaseTransitions %d, want 1", *updated.Spec.LeaseTransitions)
		}
		if updated.Spec.RenewTime == nil {
			t.Errorf("expected renewTime to default to now")
		}
	})

	t.Run("update with stale resourceVersion fails with Conflict and does not change state", func(t *testing.T) {
		before, _ := s.Get("demo", "L")
		_, err := s.Update("demo", "L", coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Name: "L", ResourceVersion: v1},
			Spec:       coordinationv1.LeaseSpec{HolderIdentity: holder("C")},
		})
		apiErr, ok := err.(*apierr.Error)
		if !ok || apiErr.Code() != 409 {
			t.Fatalf("expected 409 Conflict, got %v", err)
		}
		after, _ := s.Get("demo", "L")
		if after.ResourceVersion != before.ResourceVersion {
			t.Errorf("state changed after a rejected update")
		}
	})

	t.Run("update with same holder does not increment transitions", func(t *testing.T) {
		current, _ := s.Get("demo", "L")
		updated, err := s.Update("demo", "L", coordinationv1.Lease{
			ObjectMeta: metav1.ObjectMeta{Name: "L", ResourceVersion: current.ResourceVersion},
			Spec:       coordinationv1.LeaseSpec{HolderIdentity: holder("B")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *updated.Spec.LeaseTransitions != 1 {
			t.Errorf("got leaseTransitions %d, want unchanged at 1", *updated.Spec.LeaseTransitions)
		}
	})
}

func TestLeaseStoreListFiltersByNamespace(t *testing.T) {
	s := NewLeaseStore()
	if _, err := s.Create("demo", coordinationv1.Lease{ObjectMeta: metav1.ObjectMeta{Name: "a"}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.Create("demo", coordinationv1.Lease{ObjectMeta: metav1.ObjectMeta{Name: "b"}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.Create("other", coordinationv1.Lease{ObjectMeta: metav1.ObjectMeta{Name: "c"}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	leases := s.List("demo")
	if len(leases) != 2 {
		t.Fatalf("got %d leases, want 2", len(leases))
	}
	if leases[0].Name != "a" || leases[1].Name != "b" {
		t.Errorf("expected leases sorted by name, got %s, %s", leases[0].Name, leases[1].Name)
	}
}
