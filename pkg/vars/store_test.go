package vars

import "testing"

func TestStore_PrecedenceOrder(t *testing.T) {
	s := NewStore(map[string]interface{}{"x": "env"}, map[string]interface{}{"x": "global"})
	s.SeedSuiteVariables(map[string]interface{}{"x": "suite"})
	s.Set(Runtime, "x", "runtime")

	v, ok := s.Get("x")
	if !ok || v != "runtime" {
		t.Fatalf("expected runtime to win, got %v", v)
	}

	s.ClearScope(Runtime)
	v, _ = s.Get("x")
	if v != "suite" {
		t.Fatalf("expected suite to win after runtime cleared, got %v", v)
	}

	s.ClearScope(SuiteScope)
	v, _ = s.Get("x")
	if v != "global" {
		t.Fatalf("expected global to win after suite cleared, got %v", v)
	}
}

func TestStore_Snapshot_Restores(t *testing.T) {
	s := NewStore(nil, nil)
	s.Set(Runtime, "a", 1)
	restore := s.Snapshot()
	s.Set(Runtime, "a", 2)
	s.Set(Runtime, "b", 3)
	restore()

	v, _ := s.Get("a")
	if v != 1 {
		t.Fatalf("expected snapshot restore of a=1, got %v", v)
	}
	if _, ok := s.Get("b"); ok {
		t.Fatal("expected b to be gone after restore")
	}
}

func TestRegistry_SetThenGet(t *testing.T) {
	r := NewRegistry()
	r.RegisterNode("setup", "Setup Suite", []string{"token"}, "/tests/setup.test.yml")
	warn := r.SetExportedVariable("setup", "token", "abc")
	if warn {
		t.Fatal("expected no warning for declared export")
	}
	v, ok := r.Get("setup.token")
	if !ok || v != "abc" {
		t.Fatalf("expected setup.token == abc, got %v ok=%v", v, ok)
	}
}

func TestRegistry_UndeclaredExportWarns(t *testing.T) {
	r := NewRegistry()
	r.RegisterNode("setup", "Setup Suite", []string{"token"}, "")
	warn := r.SetExportedVariable("setup", "other", "x")
	if !warn {
		t.Fatal("expected warning for undeclared export")
	}
	if v, ok := r.Get("setup.other"); !ok || v != "x" {
		t.Fatal("expected write to still occur despite warning")
	}
}

func TestRegistry_SplitFullName_SingleDotRule(t *testing.T) {
	node, name, ok := SplitFullName("a.b.c")
	if !ok || node != "a" || name != "b.c" {
		t.Fatalf("expected single-dot split, got node=%q name=%q ok=%v", node, name, ok)
	}
	if _, _, ok := SplitFullName("noDot"); ok {
		t.Fatal("expected malformed input to fail")
	}
}

func TestRegistry_CreateSnapshot_Restores(t *testing.T) {
	r := NewRegistry()
	r.RegisterNode("setup", "Setup", []string{"x"}, "")
	r.SetExportedVariable("setup", "x", 1)
	restore := r.CreateSnapshot()
	r.SetExportedVariable("setup", "x", 2)
	r.SetExportedVariable("other", "y", 9)
	restore()

	if v, _ := r.Get("setup.x"); v != 1 {
		t.Fatalf("expected restored setup.x == 1, got %v", v)
	}
	if r.Has("other.y") {
		t.Fatal("expected other.y to be gone after restore")
	}
}
