package scenario

import "testing"

func TestPreprocess_WrapsBareLiterals(t *testing.T) {
	got := Preprocess("body.count > 2")
	want := "body.count > `2`"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPreprocess_ReplacesEnvToken(t *testing.T) {
	got := Preprocess("$env.FEATURE_FLAG == 'on'")
	if got != "`null` == 'on'" {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluate_StringEquality(t *testing.T) {
	ctx := map[string]interface{}{"body": map[string]interface{}{"status": "ok"}}
	eval := Evaluate("body.status == 'ok'", ctx)
	if eval.Err != nil || !eval.Truthy {
		t.Fatalf("expected truthy, got %+v", eval)
	}
}

func TestEvaluate_NumericComparison(t *testing.T) {
	ctx := map[string]interface{}{"body": map[string]interface{}{"count": float64(3)}}
	eval := Evaluate("body.count > 2", ctx)
	if eval.Err != nil || !eval.Truthy {
		t.Fatalf("expected truthy, got %+v", eval)
	}
}

func TestApply_SelectsThenOnTruthy(t *testing.T) {
	then := &Block{Assert: map[string]interface{}{"body.count": map[string]interface{}{"greater_than": 2}}}
	s := Scenario{Condition: "body.status == 'ok'", Then: then, Else: &Block{}}
	ctx := map[string]interface{}{"body": map[string]interface{}{"status": "ok", "count": float64(3)}}

	eval := Apply(s, ctx)
	if eval.Applied != then {
		t.Fatalf("expected then branch applied, got %+v", eval)
	}
}

func TestApply_SelectsElseOnFalsy(t *testing.T) {
	elseBlock := &Block{}
	s := Scenario{Condition: "body.status == 'ok'", Then: &Block{}, Else: elseBlock}
	ctx := map[string]interface{}{"body": map[string]interface{}{"status": "error"}}

	eval := Apply(s, ctx)
	if eval.Applied != elseBlock {
		t.Fatalf("expected else branch applied, got %+v", eval)
	}
}
