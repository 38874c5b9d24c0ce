package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Entry — строка таблицы шагов.
type Entry struct {
	Index   int
	Name    string
	Factory Factory
}

// Table — упорядоченная таблица шагов: индекс → конструктор.
//
// Таблица может быть разреженной: индекс без шага считается
// концом последовательности. Потокобезопасна.
type Table struct {
	mu      sync.RWMutex
	entries map[int]Entry
}

// NewTable создаёт пустую таблицу.
func NewTable() *Table {
	return &Table{
		entries: make(map[int]Entry),
	}
}

// DefaultTable возвращает таблицу шагов процесса.
func DefaultTable() *Table {
	t := NewTable()
	t.MustRegister(1, GenerateWorktrayName, NewGenerateWorktray)
	t.MustRegister(2, FetchAPIDataName, NewFetchAPIData)
	t.MustRegister(3, DelegatedFlowName, NewDelegatedFlow)
	t.MustRegister(4, SendExeReportName, NewSendExeReport)
	return t
}

// Register добавляет шаг под индексом.
func (t *Table) Register(index int, name string, f Factory) error {
	if index < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if f == nil {
		return fmt.Errorf("%w: nil factory for %s", ErrInvalidConfig, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[index]; ok {
		return fmt.Errorf("%w: %d (%s)", ErrDuplicateStep, index, existing.Name)
	}
	t.entries[index] = Entry{Index: index, Name: name, Factory: f}
	return nil
}

// MustRegister как Register, но паникует при ошибке.
// Используется при сборке статической таблицы.
func (t *Table) MustRegister(index int, name string, f Factory) {
	if err := t.Register(index, name, f); err != nil {
		panic(err)
	}
}

// Get возвращает шаг по индексу.
func (t *Table) Get(index int) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[index]
	return e, ok
}

// Has проверяет, есть ли шаг под индексом.
func (t *Table) Has(index int) bool {
	_, ok := t.Get(index)
	return ok
}

// Entries возвращает шаги в порядке индексов.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Count возвращает количество шагов.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last возвращает наибольший индекс (0 для пустой таблицы).
func (t *Table) Last() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last := 0
	for i := range t.entries {
		last = max(last, i)
	}
	return last
}
