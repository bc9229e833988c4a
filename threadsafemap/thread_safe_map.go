// Package threadsafemap provides a generic map guarded by a mutex.
package threadsafemap

import "sync"

// ThreadSafeMap is a map safe for concurrent use. The zero value is ready to use.
type ThreadSafeMap[K comparable, V any] struct {
	data map[K]V
	mu   sync.RWMutex
}

// NewThreadSafeMap returns an empty map.
func NewThreadSafeMap[K comparable, V any]() *ThreadSafeMap[K, V] {
	return &ThreadSafeMap[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves the value for a key and whether it was found.
func (m *ThreadSafeMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	val, exists := m.data[key]
	m.mu.RUnlock()

	return val, exists
}

// Set stores value under key.
func (m *ThreadSafeMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	m.safetyCheck()
	m.data[key] = value
	m.mu.Unlock()
}

// Delete removes key if present.
func (m *ThreadSafeMap[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
}

// Length returns the number of stored keys.
func (m *ThreadSafeMap[K, V]) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// GetOrCreate returns the value for key, calling create when it is missing.
// create runs without the lock held, so a slow create does not block other keys.
// Concurrent callers for the same missing key may each call create; the first
// stored value wins and is returned to all of them. A failed create stores
// nothing.
//
// Example usage:
//
//	bot, err := bots.GetOrCreate(token, func() (*tgbotapi.BotAPI, error) {
//		return tgbotapi.NewBotAPI(token)
//	})
func (m *ThreadSafeMap[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if val, ok := m.Get(key); ok {
		return val, nil
	}

	created, err := create()
	if err != nil {
		return created, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.safetyCheck()

	if val, ok := m.data[key]; ok {
		return val, nil
	}

	m.data[key] = created

	return created, nil
}

// Update atomically replaces the value for key with the result of fn. When fn
// returns keep == false the key is removed.
func (m *ThreadSafeMap[K, V]) Update(key K, fn func(old V, exists bool) (value V, keep bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.safetyCheck()

	old, exists := m.data[key]

	if value, keep := fn(old, exists); keep {
		m.data[key] = value
	} else {
		delete(m.data, key)
	}
}

// safetyCheck initialises the zero value. Callers hold the write lock.
func (m *ThreadSafeMap[K, V]) safetyCheck() {
	if m.data == nil {
		m.data = make(map[K]V)
	}
}
