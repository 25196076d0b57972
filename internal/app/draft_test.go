package app

import (
	"slices"
	"testing"
	"time"
)

func TestDraft_ChangedMatchesDifferences(t *testing.T) {
	d := NewDraft()
	d.Reset(map[string]string{"q1": "a", "q2": "b", "q3": ""})
	order := []string{"q1", "q2", "q3"}

	d.Set("q1", "changed")
	d.Set("q2", "b")
	d.Set("q3", "new")
	if got := d.ChangedIn(order); !slices.Equal(got, []string{"q1", "q3"}) {
		t.Fatalf("changed = %v", got)
	}

	d.Set("q1", "a")
	if got := d.ChangedIn(order); !slices.Equal(got, []string{"q3"}) {
		t.Fatalf("after revert changed = %v", got)
	}

	d.Commit(map[string]string{"q3": "new"})
	if d.ChangedCount() != 0 {
		t.Fatalf("after commit changed = %v", d.ChangedIn(order))
	}
}

func TestDraft_RemoveAndRestore(t *testing.T) {
	d := NewDraft()
	d.Reset(map[string]string{"q1": "a"})
	d.Set("q1", "b")

	e := d.remove("q1")
	if d.Has("q1") || d.IsChanged("q1") || d.Original("q1") != "" {
		t.Fatal("remove left state behind")
	}
	d.restore("q1", e)
	if d.Current("q1") != "b" || d.Original("q1") != "a" || !d.IsChanged("q1") {
		t.Fatalf("restore lost state: current=%q original=%q", d.Current("q1"), d.Original("q1"))
	}

	d.Rename("q1", "q9")
	if d.Has("q1") || d.Current("q9") != "b" || !d.IsChanged("q9") {
		t.Fatal("rename did not move state")
	}
}

func TestRegistry_DropClientAndSweep(t *testing.T) {
	r := NewRegistry[int]()
	r.GetOrCreate(WorkspaceKey("c1", "s1"), func() int { return 1 })
	r.GetOrCreate(WorkspaceKey("c1", "s2"), func() int { return 2 })
	r.GetOrCreate(WorkspaceKey("c2", "s1"), func() int { return 3 })

	if v, created := r.GetOrCreate(WorkspaceKey("c1", "s1"), func() int { return 99 }); created || v != 1 {
		t.Fatalf("GetOrCreate = %d, %v", v, created)
	}
	if n := r.DropClient("c1"); n != 2 {
		t.Fatalf("DropClient = %d", n)
	}
	if n := r.Sweep(-time.Second); n != 1 {
		t.Fatalf("Sweep = %d", n)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d", r.Len())
	}
}
