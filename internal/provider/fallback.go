package provider

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
)

// Classify определяет класс ошибки провайдера. Таймауты считаются transient,
// неизвестные ошибки - permanent: на них не стоит тратить попытки фоллбэка.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var pErr *Error
	if errors.As(err, &pErr) && pErr.Class != "" {
		return pErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassPermanent
}

// ExhaustedSet - множество провайдеров, исключенных до конца одного запуска.
// Принадлежит контексту запуска, а не процессу, поэтому параллельные запуски изолированы.
type ExhaustedSet struct {
	mu        sync.RWMutex
	providers map[string]struct{}
}

// NewExhaustedSet создает пустое множество для нового запуска.
func NewExhaustedSet() *ExhaustedSet {
	return &ExhaustedSet{providers: make(map[string]struct{})}
}

// Mark помечает провайдера исчерпанным. Возвращает true, если пометка новая.
func (s *ExhaustedSet) Mark(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; ok {
		return false
	}
	s.providers[name] = struct{}{}
	return true
}

// Contains проверяет, исключен ли провайдер.
func (s *ExhaustedSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.providers[name]
	return ok
}

// Names возвращает отсортированный список исключенных провайдеров.
func (s *ExhaustedSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextProvider возвращает первого неисчерпанного провайдера цепочки, начиная с позиции from,
// и его индекс. Если таких нет - (nil, -1).
func NextProvider(chain []VisualProvider, exhausted *ExhaustedSet, from int) (VisualProvider, int) {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(chain); i++ {
		if chain[i] == nil || exhausted.Contains(chain[i].Name()) {
			continue
		}
		return chain[i], i
	}
	return nil, -1
}
