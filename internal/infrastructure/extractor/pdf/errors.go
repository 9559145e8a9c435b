package pdf

import (
	"errors"
	"fmt"

	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

type DownloadError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *DownloadError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("download %s status: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s status: %s: %s", e.URL, e.Status, e.Body)
}

func classifyDownloadError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		var dlErr *DownloadError
		if !errors.As(err, &dlErr) {
			return resilience.ErrorClassification{}, false
		}
		return resilience.ClassifyStatus(dlErr.StatusCode), true
	})
}
