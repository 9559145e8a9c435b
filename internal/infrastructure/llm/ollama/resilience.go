package ollama

import (
	"errors"
	"net/http"

	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/httpjson"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, statusRule)
}

// statusRule also retries plain 500s: a local Ollama answers them while a
// model is still loading.
func statusRule(err error) (resilience.ErrorClassification, bool) {
	var statusErr *httpjson.StatusError
	if !errors.As(err, &statusErr) {
		return resilience.ErrorClassification{}, false
	}
	if statusErr.StatusCode == http.StatusInternalServerError {
		return resilience.Transient, true
	}
	class := resilience.ClassifyStatus(statusErr.StatusCode)
	class.RecordFailure = class.Retryable
	return class, true
}
