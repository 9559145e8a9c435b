package openai

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/httpjson"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

const retryAfterPadding = 100 * time.Millisecond

var tryAgainPattern = regexp.MustCompile(`try again in (\d+(?:\.\d+)?)(ms|s)`)

func classifyOpenAIError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, statusRule)
}

// statusRule retries throttling with the provider's hint and 500s, which the
// API returns for transient overload. Other client errors are not counted.
func statusRule(err error) (resilience.ErrorClassification, bool) {
	var statusErr *httpjson.StatusError
	if !errors.As(err, &statusErr) {
		return resilience.ErrorClassification{}, false
	}
	switch statusErr.StatusCode {
	case http.StatusTooManyRequests:
		class := resilience.Transient
		class.RetryAfter = retryAfterHint(statusErr)
		return class, true
	case http.StatusInternalServerError:
		return resilience.Transient, true
	}
	class := resilience.ClassifyStatus(statusErr.StatusCode)
	class.RecordFailure = class.Retryable
	return class, true
}

// retryAfterHint reads the Retry-After header (seconds) or the "try again in"
// phrase of the rate limit message. Zero means use the executor backoff.
func retryAfterHint(e *httpjson.StatusError) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(e.RetryAfter)); err == nil && secs > 0 {
		return time.Duration(secs)*time.Second + retryAfterPadding
	}
	m := tryAgainPattern.FindStringSubmatch(e.Body)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	unit := time.Millisecond
	if m[2] == "s" {
		unit = time.Second
	}
	return time.Duration(value*float64(unit)) + retryAfterPadding
}

func wrapOpenAIError(operation string, err error) error {
	var statusErr *httpjson.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	return resilience.WrapTemporary(operation, err, classifyOpenAIError)
}
