// Package syncmap provides a generic, type-safe wrapper over [sync.Map]
// sized to exactly what the registry's concurrent descriptor ingestion
// needs: loading, storing-if-absent, and a deterministic snapshot.
package syncmap

import "sync"

type Map[K comparable, V any] struct {
	m sync.Map
}

func (m *Map[K, V]) LoadOrStore(k K, v V) (V, bool) {
	vAny, loaded := m.m.LoadOrStore(k, v)
	return vAny.(V), loaded
}

func (m *Map[K, V]) Load(k K) (V, bool) {
	vAny, ok := m.m.Load(k)
	if !ok {
		return *new(V), false
	}
	return vAny.(V), true
}

// Range iterates in unspecified order; callers that need determinism
// should sort the result of [Map.ToMap]'s keys instead of relying on
// iteration order here.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.m.Range(func(k, v any) bool { return f(k.(K), v.(V)) })
}

func (m *Map[K, V]) ToMap() map[K]V {
	ret := map[K]V{}
	m.Range(func(k K, v V) bool {
		ret[k] = v
		return true
	})
	return ret
}
