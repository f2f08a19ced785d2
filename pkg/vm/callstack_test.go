package vm

import "testing"

func TestCallStackPushPop(t *testing.T) {
	cs := NewCallStack(2)
	if !cs.Push("Foo", "bar", "()V") {
		t.Fatal("Push returned false under the depth limit")
	}
	if cs.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", cs.Depth())
	}
	cs.Pop()
	if cs.Depth() != 0 {
		t.Fatalf("Depth() after Pop = %d, want 0", cs.Depth())
	}
}

func TestCallStackRejectsPastMaxDepth(t *testing.T) {
	cs := NewCallStack(1)
	if !cs.Push("A", "a", "()V") {
		t.Fatal("first Push under the limit returned false")
	}
	if cs.Push("B", "b", "()V") {
		t.Fatal("Push past the configured max returned true")
	}
}

func TestCallStackSetPCUpdatesTopFrame(t *testing.T) {
	cs := NewCallStack(4)
	cs.Push("A", "a", "()V")
	cs.Push("B", "b", "()V")
	cs.SetPC(10)
	snap := cs.Snapshot()
	if snap[1].PC != 10 {
		t.Errorf("top frame PC = %d, want 10", snap[1].PC)
	}
	if snap[0].PC != 0 {
		t.Errorf("SetPC touched a non-top frame: %d, want 0", snap[0].PC)
	}
}

func TestCallStackSnapshotIsACopy(t *testing.T) {
	cs := NewCallStack(4)
	cs.Push("A", "a", "()V")
	snap := cs.Snapshot()
	cs.SetPC(99)
	if snap[0].PC == 99 {
		t.Error("Snapshot aliased live call-stack state instead of copying it")
	}
}
