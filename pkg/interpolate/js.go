package interpolate

import (
	"github.com/dop251/goja"
)

// evalJS runs code inside a fresh, isolated goja runtime with the current
// variable snapshot injected as read-only globals. A new runtime per call
// keeps js: expressions from leaking state between steps, mirroring the
// teacher's per-request gojaScriptEngine.Execute isolation (r3e's
// system/tee/script_engine.go).
func (it *Interpolator) evalJS(code string) (interface{}, bool) {
	vm := goja.New()

	varsObj := vm.NewObject()
	for k, v := range it.store.GetAll() {
		_ = varsObj.Set(k, v)
	}
	_ = vm.Set("vars", varsObj)
	_ = vm.Set("$vars", varsObj)

	result, err := vm.RunString(code)
	if err != nil {
		it.logger.Debug().Err(err).Str("code", code).Msg("js: expression failed")
		return nil, false
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, true
	}
	return result.Export(), true
}
