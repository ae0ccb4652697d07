package mailbox

import "testing"

func TestTakeEmpty(t *testing.T) {
	var b Box[int]
	if v, ok := b.Take(); ok {
		t.Fatalf("Take on empty box returned %d, want nothing", v)
	}
	if b.Pending() {
		t.Fatal("empty box reports pending")
	}
}

func TestLatestWins(t *testing.T) {
	var b Box[int]
	b.Put(1)
	b.Put(2)
	b.Put(3)

	v, ok := b.Take()
	if !ok {
		t.Fatal("Take returned nothing after Put")
	}
	if v != 3 {
		t.Fatalf("Take returned %d, want latest value 3", v)
	}
	if _, ok := b.Take(); ok {
		t.Fatal("second Take returned a value, box should hold at most one")
	}
}

func TestPendingClearsOnTake(t *testing.T) {
	var b Box[string]
	b.Put("a")
	if !b.Pending() {
		t.Fatal("box with unread value reports empty")
	}
	b.Take()
	if b.Pending() {
		t.Fatal("box still pending after Take")
	}
}
