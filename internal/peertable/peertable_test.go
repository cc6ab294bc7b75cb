package peertable

import "testing"

func TestUpsertReportsNewness(t *testing.T) {
	table := New()
	if isNew := table.Upsert("10.0.0.1", 9000, 5); !isNew {
		t.Fatal("first Upsert() isNew = false, want true")
	}
	if isNew := table.Upsert("10.0.0.1", 9000, 9); isNew {
		t.Fatal("second Upsert() of same peer isNew = true, want false")
	}
	if table.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", table.Count())
	}
}

func TestUpsertUpdatesLatestBlockID(t *testing.T) {
	table := New()
	table.Upsert("10.0.0.1", 9000, 5)
	table.Upsert("10.0.0.1", 9000, 12)

	all := table.All()
	if len(all) != 1 || all[0].LatestBlockID != 12 {
		t.Fatalf("All() = %+v, want LatestBlockID 12", all)
	}
}

func TestKnown(t *testing.T) {
	table := New()
	if table.Known("10.0.0.1", 9000) {
		t.Fatal("Known() on empty table = true")
	}
	table.Upsert("10.0.0.1", 9000, 0)
	if !table.Known("10.0.0.1", 9000) {
		t.Fatal("Known() after Upsert() = false")
	}
}

func TestBestPrefersHigherHeightStrictlyGreater(t *testing.T) {
	table := New()
	table.Upsert("10.0.0.1", 9000, 5)
	table.Upsert("10.0.0.2", 9001, 10)
	table.Upsert("10.0.0.3", 9002, 3)

	best, ok := table.Best(5)
	if !ok {
		t.Fatal("Best() ok = false, want true")
	}
	if best.LatestBlockID != 10 {
		t.Fatalf("Best() = %+v, want the height-10 peer", best)
	}
}

func TestBestReturnsFalseWhenNoPeerIsAhead(t *testing.T) {
	table := New()
	table.Upsert("10.0.0.1", 9000, 5)
	if _, ok := table.Best(10); ok {
		t.Fatal("Best() ok = true when no peer is ahead of local height")
	}
}

func TestRecordFailureDoesNotRemovePeer(t *testing.T) {
	table := New()
	table.Upsert("10.0.0.1", 9000, 0)
	table.RecordFailure("10.0.0.1", 9000)
	table.RecordFailure("10.0.0.1", 9000)
	if !table.Known("10.0.0.1", 9000) {
		t.Fatal("peer vanished after RecordFailure()")
	}
}
