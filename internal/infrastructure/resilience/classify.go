package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Fatal failures count against the breaker but retrying will not help.
	Fatal = ErrorClassification{RecordFailure: true}
	// Rejected marks caller-side problems: bad input, cancellation, expired sessions.
	Rejected = ErrorClassification{}
)

// Rule classifies the errors one adapter knows about and reports false for the rest.
type Rule func(err error) (ErrorClassification, bool)

// Classify applies adapter rules between the checks every outbound call shares:
// cancellation is never retried, open breakers and network errors are transient,
// anything else is fatal.
func Classify(err error, rules ...Rule) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Rejected
	}
	for _, rule := range rules {
		if class, ok := rule(err); ok {
			return class
		}
	}
	if IsCircuitOpen(err) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Fatal
}

// ClassifyStatus treats gateway and throttling answers as transient, other
// server errors as fatal and client errors as rejected.
func ClassifyStatus(code int) ErrorClassification {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable,
		code == http.StatusGatewayTimeout:
		return Transient
	case code >= http.StatusInternalServerError:
		return Fatal
	default:
		return Rejected
	}
}

// WrapTemporary marks errors worth retrying later (by the caller or a queue
// redelivery) as domain.ErrTemporary.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
