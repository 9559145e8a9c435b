package portal

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

type StatusError struct {
	CityID     string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func newStatusError(cityID, operation string, resp *http.Response) *StatusError {
	return &StatusError{
		CityID:     cityID,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       readBody(resp.Body),
	}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("portal %s %s status: %s", e.CityID, e.Operation, e.Status)
	}
	return fmt.Sprintf("portal %s %s status: %s: %s", e.CityID, e.Operation, e.Status, e.Body)
}

// SessionExpiredError means the portal answered with a login page instead of data.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string { return "portal session expired: " + e.Err.Error() }

func (e *SessionExpiredError) Unwrap() error { return e.Err }

func classifyPortalError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, portalRule)
}

// portalRule never retries expired sessions inside the executor: the client
// re-initializes the session and searches again itself.
func portalRule(err error) (resilience.ErrorClassification, bool) {
	var expired *SessionExpiredError
	if errors.As(err, &expired) {
		return resilience.Rejected, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return resilience.ClassifyStatus(statusErr.StatusCode), true
	}
	return resilience.ErrorClassification{}, false
}
