package api

import (
	"errors"
	"net/http"

	"github.com/gridtrack/gridtrack/pkg/aggregate"
	"github.com/gridtrack/gridtrack/pkg/httpx"
	"github.com/gridtrack/gridtrack/pkg/store"
)

// Validation errors raised by the facade before a request reaches the
// aggregator. The aggregator contributes ErrInvalidRange and
// ErrInvalidGranularity, the store contributes ErrUnavailable.
var (
	ErrInvalidSource      = errors.New("unknown generation source")
	ErrMalformedGroupSpec = errors.New("malformed group specification")
)

// respondQueryError maps a query failure onto an HTTP status and a stable
// error code. Anything unrecognized is a 500 without a code.
func respondQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aggregate.ErrInvalidRange):
		httpx.RespondErrorCode(w, http.StatusBadRequest, "invalid_range", err)
	case errors.Is(err, aggregate.ErrInvalidGranularity):
		httpx.RespondErrorCode(w, http.StatusBadRequest, "invalid_granularity", err)
	case errors.Is(err, ErrInvalidSource):
		httpx.RespondErrorCode(w, http.StatusBadRequest, "invalid_source", err)
	case errors.Is(err, ErrMalformedGroupSpec):
		httpx.RespondErrorCode(w, http.StatusBadRequest, "malformed_group_spec", err)
	case errors.Is(err, store.ErrUnavailable):
		httpx.RespondErrorCode(w, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		httpx.RespondError(w, http.StatusInternalServerError, err)
	}
}
