package seeds

import (
    "testing"

    base "github.com/amirimatin/go-meshseed/pkg/state"
)

func TestRegistry_AddUpdateRemove(t *testing.T) {
    r := New()
    r.Add("a.example", true)
    r.Add("b.example", false)
    r.Add("a.example", false)

    got := r.List()
    want := []base.SeedEntry{{Name: "a.example"}, {Name: "b.example"}}
    if len(got) != len(want) {
        t.Fatalf("len = %d, want %d (%#v)", len(got), len(want), got)
    }
    for i := range want {
        if got[i] != want[i] { t.Fatalf("item %d: got %#v want %#v", i, got[i], want[i]) }
    }

    if !r.Remove("a.example") { t.Fatalf("expected removal of a.example") }
    if r.Remove("a.example") { t.Fatalf("second removal should report false") }
    if r.Len() != 1 { t.Fatalf("len after remove = %d", r.Len()) }
}

func TestRegistry_ListIsCopy(t *testing.T) {
    r := New()
    r.Add("a.example", true)
    l := r.List()
    l[0].Name = "x"
    if r.List()[0].Name != "a.example" {
        t.Fatalf("expected defensive copy, got %#v", r.List())
    }
}

func TestRegistry_SnapshotRestore(t *testing.T) {
    r := New()
    r.Add("b.example", true)
    r.Add("a.example", false)
    snap, err := r.Snapshot()
    if err != nil { t.Fatalf("snapshot: %v", err) }

    r2 := New()
    r2.Add("stale.example", true)
    if err := r2.Restore(snap); err != nil { t.Fatalf("restore: %v", err) }
    snap2, err := r2.Snapshot()
    if err != nil { t.Fatalf("snapshot2: %v", err) }
    if string(snap2) != string(snap) {
        t.Fatalf("round-trip mismatch:\n got: %s\nwant: %s", snap2, snap)
    }
    if err := r2.Restore([]byte(`{"version":2}`)); err == nil {
        t.Fatalf("expected error on unknown version")
    }
}
