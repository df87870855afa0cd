package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

func newComparisonValidator(valueInClosure int64, compareFn func(argValue, closedValue int64) bool) ParamValidator {
	return func(argValue int64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// gte returns a ParamValidator that checks if the argument is greater than or equal to the value captured in the closure.
func gte(valToCompareAgainst int64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue int64) bool {
		return argValue >= closedValue
	})
}

// OptionalIntGte parses an optional integer query parameter that must be >= value.
// A missing parameter yields def.
func OptionalIntGte(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, value int64, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, ok := parseValidate(w, logger, key, raw, gte(value))
	return int(n), ok
}

// OptionalInt64 parses an optional int64 query parameter. Missing yields nil.
func OptionalInt64(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (*int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	n, ok := parseValidate(w, logger, key, raw, func(int64) bool { return true })
	if !ok {
		return nil, false
	}
	return &n, true
}

// OptionalFloat parses an optional float query parameter. Missing yields nil.
func OptionalFloat(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (*float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, raw))
		return nil, false
	}
	return &f, true
}

// OptionalBool parses an optional boolean query parameter. Missing yields nil.
func OptionalBool(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (*bool, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s value: %s", key, raw))
		return nil, false
	}
	return &v, true
}

// OptionalUUID parses an optional UUID query parameter. Missing yields nil.
func OptionalUUID(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", key, raw))
		return nil, false
	}
	return &id, true
}

func parseValidate(w http.ResponseWriter, logger *slog.Logger, key, value string, pValidator ParamValidator) (int64, bool) {
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return intValue, true
}
