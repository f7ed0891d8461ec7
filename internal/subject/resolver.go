// Package subject разрешает ссылку запроса (id события платформы или URL) в описание субъекта ролика.
package subject

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campaign-server/internal/domain"
)

var (
	// ErrNotFound - событие с таким id не существует.
	ErrNotFound = errors.New("subject not found")
	// ErrEmptyContent - страница не дала ни заголовка, ни описания.
	ErrEmptyContent = errors.New("subject page has no usable content")
)

// Resolver - источник описания субъекта. Только чтение.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (domain.Subject, error)
}

// Router направляет URL-ссылки в resolver страниц, остальное - в каталог событий.
type Router struct {
	events Resolver
	urls   Resolver
}

func NewRouter(events, urls Resolver) *Router {
	return &Router{events: events, urls: urls}
}

func (r *Router) Resolve(ctx context.Context, ref string) (domain.Subject, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Subject{}, fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	if IsURL(ref) {
		if r.urls == nil {
			return domain.Subject{}, fmt.Errorf("url subjects are not supported: %s", ref)
		}
		return r.urls.Resolve(ctx, ref)
	}
	return r.events.Resolve(ctx, ref)
}

// IsURL сообщает, является ли ссылка http(s) URL.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
