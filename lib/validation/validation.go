package validation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/apperr"
)

// dateRegex is a regular expression that matches dates in YYYY-MM-DD format.
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateDate checks if a date string is in the correct format (YYYY-MM-DD)
// and ensures it's not in the future.
func ValidateDate(date string) (time.Time, error) {
	if !dateRegex.MatchString(date) {
		return time.Time{}, apperr.Validation(fmt.Sprintf("invalid date format: %s, expected YYYY-MM-DD", date))
	}

	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date")
	}

	if parsed.After(time.Now()) {
		return time.Time{}, apperr.Validation("date cannot be in the future")
	}

	return parsed, nil
}

// ValidatePagination validates pagination parameters to ensure they are within
// acceptable ranges.
func ValidatePagination(page, size int) error {
	if page < 1 {
		return apperr.Validation("page must be greater than 0")
	}
	if size < 1 || size > 100 {
		return apperr.Validation("size must be between 1 and 100")
	}
	return nil
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes err as {"status":"error","message":...}. Domain errors
// pick their own status and message; anything else becomes a 500 with a
// generic message and is logged.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	body := errorBody{Status: "error", Message: apperr.PublicMessage(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Details = appErr.Details
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", slog.Any("error", err))
	}

	WriteJSON(w, status, body)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

// DecodeJSON reads a JSON request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required")
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// LikePattern lowercases term and wraps it for a substring LIKE match. The
// wildcards in term are escaped, so the query must use ESCAPE '\'.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
