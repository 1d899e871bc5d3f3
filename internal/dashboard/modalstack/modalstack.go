// Package modalstack ведёт порядок открытых модальных окон и их z-index.
package modalstack

import "sync"

const (
	DefaultBase = 1050
	DefaultStep = 10
)

type Layer struct {
	ID     string
	ZIndex int
}

// Stack хранит идентификаторы открытых окон в порядке открытия.
// Позже открытое окно всегда лежит выше.
type Stack struct {
	mu   sync.Mutex
	ids  []string
	base int
	step int
}

func New() *Stack {
	return &Stack{base: DefaultBase, step: DefaultStep}
}

func NewWithBase(base, step int) *Stack {
	return &Stack{base: base, step: step}
}

// Open добавляет окно наверх. Повторное открытие ничего не меняет.
func (s *Stack) Open(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(id) >= 0 {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Close убирает окно, остальные сдвигаются вниз.
func (s *Stack) Close(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	return true
}

func (s *Stack) ZIndex(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return 0, false
	}
	return s.z(i), true
}

// Layers отдаёт открытые окна снизу вверх.
func (s *Stack) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Layer, len(s.ids))
	for i, id := range s.ids {
		out[i] = Layer{ID: id, ZIndex: s.z(i)}
	}
	return out
}

func (s *Stack) Top() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return "", false
	}
	return s.ids[len(s.ids)-1], true
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Stack) z(i int) int {
	return s.base + (i+1)*s.step
}

func (s *Stack) index(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}
