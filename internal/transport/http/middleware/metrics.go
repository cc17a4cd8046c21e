package middleware

import (
	"net/http"
	"strings"
	"time"

	"leavedesk/internal/platform/metrics"
)

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizeMetricPath(r.URL.Path)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.RecordHTTPRequest(r.Method, path, recorder.status, time.Since(start))
	})
}

// normalizeMetricPath replaces id-shaped path segments with {id} to keep
// label cardinality bounded.
func normalizeMetricPath(path string) string {
	segments := strings.Split(path, "/")
	changed := false
	for i, segment := range segments {
		if isIDSegment(segment) {
			segments[i] = "{id}"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segments, "/")
}

func isIDSegment(segment string) bool {
	if len(segment) != 36 {
		return false
	}
	for i, r := range segment {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
				return false
			}
		}
	}
	return true
}
