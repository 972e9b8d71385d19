package containers

import "container/list"

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

// LRU keeps values in recency order. It does not evict on its own; the owner
// walks it from the least recently used end and decides what may go.
// Not safe for concurrent use.
type LRU[K comparable, V any] struct {
	order *list.List
	items map[K]*list.Element
}

func NewLRU[K comparable, V any]() *LRU[K, V] {
	return &LRU[K, V]{
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

// Put inserts or replaces the value and marks it most recently used.
func (l *LRU[K, V]) Put(key K, value V) {
	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem[K, V]).value = value
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem[K, V]{key: key, value: value})
}

// Get returns the value and marks it most recently used.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	el, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem[K, V]).value, true
}

// Peek returns the value without touching its recency.
func (l *LRU[K, V]) Peek(key K) (V, bool) {
	el, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return el.Value.(*lruItem[K, V]).value, true
}

func (l *LRU[K, V]) Remove(key K) (V, bool) {
	el, ok := l.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	delete(l.items, key)
	l.order.Remove(el)
	return el.Value.(*lruItem[K, V]).value, true
}

func (l *LRU[K, V]) Len() int {
	return len(l.items)
}

// Oldest returns keys from least to most recently used.
func (l *LRU[K, V]) Oldest() []K {
	keys := make([]K, 0, len(l.items))
	for el := l.order.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*lruItem[K, V]).key)
	}
	return keys
}

func (l *LRU[K, V]) Clear() {
	l.order.Init()
	l.items = make(map[K]*list.Element)
}
