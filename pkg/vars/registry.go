package vars

import (
	"strings"
	"sync"
)

// namespace is one node's published state: the declared exportable names,
// its descriptive metadata, and the values actually written so far.
type namespace struct {
	suiteName      string
	filePath       string
	declaredExport map[string]bool
	variables      map[string]interface{}
}

// Registry is the cross-suite export registry: a map of maps keyed by
// node_id, plus a flat index for O(1) membership tests, guarded by a
// reader-writer lock so interpolation reads never block each other under
// parallel execution (spec.md §4.4, §5).
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
	flatIndex  map[string]string // "nodeId.name" -> nodeId

	onWrite func(fullName string)
}

// NewRegistry creates an empty export registry.
func NewRegistry() *Registry {
	return &Registry{
		namespaces: make(map[string]*namespace),
		flatIndex:  make(map[string]string),
	}
}

// SetOnWrite installs a callback invoked (outside the lock) after every
// successful write, used to invalidate the interpolation cache.
func (r *Registry) SetOnWrite(fn func(fullName string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWrite = fn
}

// RegisterNode creates or updates a node's namespace. Idempotent: calling
// it again with a new exports list replaces the declared list but
// preserves any variable values already written.
func (r *Registry) RegisterNode(nodeID, suiteName string, exports []string, filePath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[nodeID]
	if !ok {
		ns = &namespace{variables: make(map[string]interface{})}
		r.namespaces[nodeID] = ns
	}
	ns.suiteName = suiteName
	ns.filePath = filePath
	ns.declaredExport = make(map[string]bool, len(exports))
	for _, e := range exports {
		ns.declaredExport[e] = true
	}
}

// SetExportedVariable writes a value into nodeID's namespace, creating the
// namespace on first use (suiteName = nodeID, filePath empty). A value
// never crosses namespaces; only the publishing node_id can later
// overwrite it.
func (r *Registry) SetExportedVariable(nodeID, name string, value interface{}) (warnUndeclared bool) {
	r.mu.Lock()
	ns, ok := r.namespaces[nodeID]
	if !ok {
		ns = &namespace{suiteName: nodeID, variables: make(map[string]interface{}), declaredExport: map[string]bool{}}
		r.namespaces[nodeID] = ns
	}
	if ns.declaredExport == nil || !ns.declaredExport[name] {
		warnUndeclared = true
	}
	ns.variables[name] = value
	fullName := nodeID + "." + name
	r.flatIndex[fullName] = nodeID
	cb := r.onWrite
	r.mu.Unlock()

	if cb != nil {
		cb(fullName)
	}
	return warnUndeclared
}

// Get splits fullName on the first '.' into (nodeId, name) and returns the
// published value, or false on malformed input (no dot, either half
// empty) or an unresolved name (spec.md §4.4, §9 open question #2: the
// single-dot rule is the contract).
func (r *Registry) Get(fullName string) (interface{}, bool) {
	nodeID, name, ok := SplitFullName(fullName)
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := ns.variables[name]
	return v, ok
}

// Has reports O(1) membership of a fully-qualified name.
func (r *Registry) Has(fullName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.flatIndex[fullName]
	return ok
}

// SplitFullName implements the single-dot contract: split on the first '.'
// only, so "a.b.c" resolves as (a, "b.c").
func SplitFullName(fullName string) (nodeID, name string, ok bool) {
	idx := strings.Index(fullName, ".")
	if idx <= 0 || idx == len(fullName)-1 {
		return "", "", false
	}
	return fullName[:idx], fullName[idx+1:], true
}

// Flatten returns every published value keyed by its full "nodeId.name".
func (r *Registry) Flatten() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]interface{}, len(r.flatIndex))
	for nodeID, ns := range r.namespaces {
		for name, v := range ns.variables {
			out[nodeID+"."+name] = v
		}
	}
	return out
}

// snapshotState is the serializable copy used by CreateSnapshot/restore.
type snapshotState struct {
	namespaces map[string]*namespace
	flatIndex  map[string]string
}

// CreateSnapshot returns a restore callable re-establishing the exact
// prior registry state, used for isolated call invocations (spec.md §4.4).
func (r *Registry) CreateSnapshot() func() {
	r.mu.RLock()
	saved := snapshotState{
		namespaces: make(map[string]*namespace, len(r.namespaces)),
		flatIndex:  make(map[string]string, len(r.flatIndex)),
	}
	for id, ns := range r.namespaces {
		clonedVars := make(map[string]interface{}, len(ns.variables))
		for k, v := range ns.variables {
			clonedVars[k] = v
		}
		clonedExports := make(map[string]bool, len(ns.declaredExport))
		for k, v := range ns.declaredExport {
			clonedExports[k] = v
		}
		saved.namespaces[id] = &namespace{
			suiteName:      ns.suiteName,
			filePath:       ns.filePath,
			declaredExport: clonedExports,
			variables:      clonedVars,
		}
	}
	for k, v := range r.flatIndex {
		saved.flatIndex[k] = v
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.namespaces = saved.namespaces
		r.flatIndex = saved.flatIndex
	}
}
