package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass - класс ошибки провайдера, от которого зависит политика повтора и фоллбэка.
type ErrorClass string

const (
	ClassTransient      ErrorClass = "transient"       // "модель загружается", таймаут, 5xx - один повтор у того же провайдера
	ClassQuotaExhausted ErrorClass = "quota_exhausted" // квота/авторизация - провайдер исключается до конца запуска
	ClassPermanent      ErrorClass = "permanent"       // например, промпт отклонен фильтром - сцена падает сразу
)

// ErrEmptyPayload - провайдер ответил успехом, но без данных.
var ErrEmptyPayload = errors.New("provider returned empty payload")

// Error - ошибка вызова провайдера с уже известным классом.
type Error struct {
	Provider   string
	Class      ErrorClass
	StatusCode int
	Err        error
}

// NewError оборачивает ошибку провайдера с явным классом.
func NewError(providerName string, class ErrorClass, statusCode int, err error) *Error {
	return &Error{Provider: providerName, Class: class, StatusCode: statusCode, Err: err}
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyHTTPStatus переводит HTTP-статус ответа провайдера в класс ошибки.
// 429 считается исчерпанием квоты только если тело ответа говорит о квоте, иначе это rate limit.
func ClassifyHTTPStatus(status int, body []byte) ErrorClass {
	switch status {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return ClassQuotaExhausted
	case http.StatusTooManyRequests:
		if isQuotaBody(body) {
			return ClassQuotaExhausted
		}
		return ClassTransient
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// FromHTTPStatus создает ошибку провайдера по HTTP-статусу и телу ответа.
func FromHTTPStatus(providerName string, status int, body []byte) *Error {
	return NewError(providerName, ClassifyHTTPStatus(status, body), status,
		fmt.Errorf("unexpected status %d: %s", status, truncateBody(body)))
}

func isQuotaBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "billing")
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
