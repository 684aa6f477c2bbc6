// Пакет service — бизнес-логика сервиса сбора материалов.
// locks.go — реестр неблокирующих замков на слот (доклад, тип материала).
package service

import "sync"

// SlotLocks — реестр замков по ключу доклад+тип материала. Замок не
// ждёт освобождения: занятый слот означает, что параллельная операция
// уже идёт, и вторая сразу получает отказ.
type SlotLocks struct {
	mu         sync.Mutex
	inProgress map[string]struct{}
}

// NewSlotLocks создаёт пустой реестр.
func NewSlotLocks() *SlotLocks {
	return &SlotLocks{inProgress: make(map[string]struct{})}
}

// TryAcquire пытается занять слот. false — слот уже занят.
func (l *SlotLocks) TryAcquire(uid, itemId string) bool {
	key := uid + itemId
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inProgress[key]; busy {
		return false
	}
	l.inProgress[key] = struct{}{}
	return true
}

// Release освобождает слот. Освобождение свободного слота безвредно.
func (l *SlotLocks) Release(uid, itemId string) {
	key := uid + itemId
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inProgress, key)
}
