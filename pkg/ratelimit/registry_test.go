package ratelimit

import "testing"

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate("support", 10)
	b := r.GetOrCreate("support", 10)
	if a != b {
		t.Error("GetOrCreate with unchanged rpm returned a new limiter")
	}

	c := r.GetOrCreate("research", 5)
	if c == a {
		t.Error("distinct agents share a limiter")
	}
}

func TestRegistryRecreatesOnRPMChange(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate("support", 10)
	a.Acquire()

	b := r.GetOrCreate("support", 20)
	if a == b {
		t.Fatal("GetOrCreate with changed rpm kept the old limiter")
	}
	if b.RPM() != 20 {
		t.Errorf("recreated limiter RPM = %d, want 20", b.RPM())
	}
	if got := b.CurrentCount(); got != 0 {
		t.Errorf("recreated limiter CurrentCount = %d, want 0", got)
	}
}

func TestRegistryRemoveAndClear(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("support", 10)
	r.GetOrCreate("research", 5)

	r.Remove("support")
	if _, ok := r.Get("support"); ok {
		t.Error("Get after Remove found a limiter")
	}
	if _, ok := r.Get("research"); !ok {
		t.Error("Remove dropped an unrelated limiter")
	}

	r.Clear()
	if _, ok := r.Get("research"); ok {
		t.Error("Get after Clear found a limiter")
	}
}
