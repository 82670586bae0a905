package interpolate

import (
	"testing"

	"github.com/flowtestdev/flowtest/pkg/vars"
	"github.com/rs/zerolog"
)

func newTestInterpolator() (*Interpolator, *vars.Store, *vars.Registry) {
	store := vars.NewStore(map[string]interface{}{"HOST": "example.com"}, nil)
	registry := vars.NewRegistry()
	store.SetRegistry(registry)
	it := New(store, registry, zerolog.Nop())
	return it, store, registry
}

func TestString_BareIdentifier(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "name", "Ada")
	got := it.String("hello {{name}}")
	if got != "hello Ada" {
		t.Fatalf("got %q", got)
	}
}

func TestString_EnvForm(t *testing.T) {
	it, _, _ := newTestInterpolator()
	got := it.String("https://{{$env.HOST}}/health")
	if got != "https://example.com/health" {
		t.Fatalf("got %q", got)
	}
}

func TestString_DottedRegistryLookup(t *testing.T) {
	it, _, registry := newTestInterpolator()
	registry.RegisterNode("setup", "Setup", []string{"token"}, "")
	registry.SetExportedVariable("setup", "token", "abc123")
	got := it.String("Bearer {{setup.token}}")
	if got != "Bearer abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestString_DottedObjectWalk(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "user", map[string]interface{}{"id": float64(42)})
	got := it.String("{{user.id}}")
	if got != "42" {
		t.Fatalf("got %q", got)
	}
}

func TestString_FakerForm(t *testing.T) {
	it, _, _ := newTestInterpolator()
	got := it.String("{{$faker.uuid}}")
	if len(got) != 36 {
		t.Fatalf("expected a 36-char uuid, got %q", got)
	}
}

func TestString_JSForm(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "count", float64(2))
	got := it.String("{{js: vars.count + 1}}")
	if got != "3" {
		t.Fatalf("got %q", got)
	}
}

func TestString_UnresolvedTokenLeftVerbatim(t *testing.T) {
	it, _, _ := newTestInterpolator()
	var warned string
	it.SetWarnFunc(func(msg string) { warned = msg })
	got := it.String("{{doesNotExist}}")
	if got != "{{doesNotExist}}" {
		t.Fatalf("got %q", got)
	}
	if warned == "" {
		t.Fatal("expected a warning to be recorded")
	}
}

func TestValue_RecursesMapsAndSlices(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "id", "7")
	in := map[string]interface{}{
		"path": "/users/{{id}}",
		"tags": []interface{}{"{{id}}", "static"},
		"num":  42,
	}
	out := it.Value(in).(map[string]interface{})
	if out["path"] != "/users/7" {
		t.Fatalf("got %v", out["path"])
	}
	if out["tags"].([]interface{})[0] != "7" {
		t.Fatalf("got %v", out["tags"])
	}
	if out["num"] != 42 {
		t.Fatalf("expected non-string leaves preserved, got %v", out["num"])
	}
}

func TestEval_ReturnsRawArrayWithoutStringCoercion(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "ids", []interface{}{"a", "b"})
	got, ok := it.Eval("ids")
	if !ok {
		t.Fatal("expected ids to resolve")
	}
	arr, isArr := got.([]interface{})
	if !isArr || len(arr) != 2 {
		t.Fatalf("expected raw []interface{}, got %#v", got)
	}
}

func TestCache_InvalidatedOnWrite(t *testing.T) {
	it, store, _ := newTestInterpolator()
	store.Set(vars.Runtime, "x", "first")
	first := it.String("{{x}}")
	store.Set(vars.Runtime, "x", "second")
	second := it.String("{{x}}")
	if first != "first" || second != "second" {
		t.Fatalf("expected cache invalidation on write, got %q then %q", first, second)
	}
}

func TestStringify_Scalars(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"hi", "hi"},
		{true, "true"},
		{float64(3), "3"},
		{float64(3.5), "3.5"},
		{map[string]interface{}{"a": 1.0}, `{"a":1}`},
	}
	for _, c := range cases {
		if got := Stringify(c.in); got != c.want {
			t.Fatalf("Stringify(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
