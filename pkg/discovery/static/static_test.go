package static

import (
    "context"
    "errors"
    "testing"

    "github.com/amirimatin/go-meshseed/pkg/discovery"
    "github.com/amirimatin/go-meshseed/pkg/state"
)

func TestParse(t *testing.T) {
    cases := []struct{
        in   string
        want []state.SeedEntry
    }{
        {"", nil},
        {"a.example", []state.SeedEntry{{Name: "a.example", TrustSupernode: true}}},
        {" a.example , b.example:untrusted ", []state.SeedEntry{{Name: "a.example", TrustSupernode: true}, {Name: "b.example"}}},
        {",,a.example:trust, ,b.example:false,", []state.SeedEntry{{Name: "a.example", TrustSupernode: true}, {Name: "b.example"}}},
    }
    for _, c := range cases {
        got := Parse(c.in)
        if len(got) != len(c.want) {
            t.Fatalf("len mismatch for %q: got %d want %d", c.in, len(got), len(c.want))
        }
        for i := range got {
            if got[i] != c.want[i] {
                t.Fatalf("[%q] item %d: got %#v want %#v", c.in, i, got[i], c.want[i])
            }
        }
    }
}

func TestNew(t *testing.T) {
    d := New(state.SeedEntry{Name: " a.example "}, state.SeedEntry{}, state.SeedEntry{Name: "b.example", TrustSupernode: true})
    got := d.Seeds()
    if len(got) != 2 || got[0].Name != "a.example" || got[1].Name != "b.example" {
        t.Fatalf("unexpected seeds: %#v", got)
    }
    // Ensure returned slice is a copy
    got[0].Name = "x"
    got2 := d.Seeds()
    if got2[0].Name != "a.example" {
        t.Fatalf("expected defensive copy, got %#v", got2)
    }
}

func TestResolver(t *testing.T) {
    r := NewResolver()
    ctx := context.Background()
    if _, err := r.LookupTXT(ctx, "a.example"); !errors.Is(err, discovery.ErrNoTXT) {
        t.Fatalf("expected ErrNoTXT, got %v", err)
    }
    r.Set("a.example", "one", "two")
    got, err := r.LookupTXT(ctx, "a.example")
    if err != nil || len(got) != 2 || got[0] != "one" {
        t.Fatalf("lookup: %#v %v", got, err)
    }
    boom := errors.New("boom")
    r.Fail("a.example", boom)
    if _, err := r.LookupTXT(ctx, "a.example"); !errors.Is(err, boom) {
        t.Fatalf("expected injected error, got %v", err)
    }
}
