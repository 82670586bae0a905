package assert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseCtx() map[string]interface{} {
	return map[string]interface{}{
		"status_code": 200,
		"headers":     map[string]interface{}{"Content-Type": "application/json"},
		"body":        map[string]interface{}{"user": map[string]interface{}{"id": float64(42)}, "status": "ok", "count": float64(3)},
		"duration_ms": int64(120),
	}
}

func TestCheck_StatusCodeEquals(t *testing.T) {
	results, passed := Check(map[string]interface{}{"status_code": 200}, baseCtx())
	assert.True(t, passed)
	assert.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestCheck_FlatBodyPathEquivalentToStructured(t *testing.T) {
	flat := map[string]interface{}{"body.user.id": 42}
	structured := map[string]interface{}{"body": map[string]interface{}{"user.id": map[string]interface{}{"equals": 42}}}

	r1, p1 := Check(flat, baseCtx())
	r2, p2 := Check(structured, baseCtx())

	assert.True(t, p1)
	assert.True(t, p2)
	assert.Equal(t, len(r1), len(r2))
	assert.Equal(t, r1[0].Field, r2[0].Field)
}

func TestCheck_HeaderCaseInsensitive(t *testing.T) {
	_, passed := Check(map[string]interface{}{"headers": map[string]interface{}{"content-type": "application/json"}}, baseCtx())
	assert.True(t, passed)
}

func TestCheck_GreaterThanScenario(t *testing.T) {
	_, passed := Check(map[string]interface{}{"body": map[string]interface{}{"count": map[string]interface{}{"greater_than": 2}}}, baseCtx())
	assert.True(t, passed)
}

func TestCheck_ResponseTimeLessThan(t *testing.T) {
	_, passed := Check(map[string]interface{}{"response_time_ms": map[string]interface{}{"less_than": 500}}, baseCtx())
	assert.True(t, passed)
}

func TestCheck_EqualsTypeTolerant(t *testing.T) {
	ctx := baseCtx()
	_, passed := Check(map[string]interface{}{"body": map[string]interface{}{"count": "3"}}, ctx)
	assert.True(t, passed, "expected string \"3\" to equal numeric 3 via type-tolerant comparison")
}

func TestCheck_Contains(t *testing.T) {
	ctx := baseCtx()
	_, passed := Check(map[string]interface{}{"body": map[string]interface{}{"status": map[string]interface{}{"contains": "o"}}}, ctx)
	assert.True(t, passed)
}

func TestCheck_FailureProducesMessage(t *testing.T) {
	results, passed := Check(map[string]interface{}{"status_code": 500}, baseCtx())
	assert.False(t, passed)
	assert.NotEmpty(t, results[0].Message)
}

func TestCheck_Regex(t *testing.T) {
	ctx := baseCtx()
	_, passed := Check(map[string]interface{}{"body": map[string]interface{}{"status": map[string]interface{}{"regex": "^o"}}}, ctx)
	assert.True(t, passed, "expected regex ^o to match \"ok\"")
}
