package windows

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

type ErrorType int

const (
	ErrorTypeTemporary ErrorType = iota
	ErrorTypeCritical
	ErrorTypeRetryable
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypeCritical:
		return "critical"
	case ErrorTypeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// classifyError относит ошибку к одному из классов:
// retryable — потеря связи с окном, лечится переподключением;
// temporary — элемент не нашелся или рендер затянулся, лечится повтором;
// critical — все остальное.
func classifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeTemporary
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "websocket") ||
		strings.Contains(errStr, "target closed") ||
		strings.Contains(errStr, "browser has been closed") ||
		strings.Contains(errStr, "econnrefused") ||
		strings.Contains(errStr, "etimedout") {
		return ErrorTypeRetryable
	}

	if strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "selector") ||
		strings.Contains(errStr, "element") ||
		strings.Contains(errStr, "не найден") ||
		strings.Contains(errStr, "не завершился") {
		return ErrorTypeTemporary
	}

	return ErrorTypeCritical
}

func isConnectionError(err error) bool {
	return classifyError(err) == ErrorTypeRetryable
}

// retryWithBackoff повторяет fn с экспоненциальной паузой между попытками.
// Критические ошибки не повторяются.
func retryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if classifyError(err) == ErrorTypeCritical {
			return err
		}
	}

	return fmt.Errorf("после %d попыток: %w", maxRetries, lastErr)
}
