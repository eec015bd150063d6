package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tensile/internal/benchdb"
	"github.com/samcharles93/tensile/internal/codegen"
)

// requestID tags the response with a fresh id and returns it for the body.
func requestID(c *echo.Context) string {
	id := "req_" + uuid.NewString()
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return id
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{
		RequestID: requestID(c),
		Error:     ResponseError{Message: msg, Type: errType},
	})
}

// writeLookupError maps database and generator errors onto statuses.
func writeLookupError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, benchdb.ErrNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, benchdb.ErrInvalidBucket):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, codegen.ErrIncompleteSolution),
		errors.Is(err, codegen.ErrIncompatibleProblem),
		errors.Is(err, codegen.ErrInvalidName):
		return writeError(c, http.StatusUnprocessableEntity, "generation_error", err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// parseBucket reads the optional bucket query parameter; absent means all.
func parseBucket(raw string) (int, error) {
	if raw == "" {
		return -1, nil
	}
	b, err := strconv.Atoi(raw)
	if err != nil || b < 0 {
		return 0, newInvalidRequest("bucket must be 0 or 1")
	}
	return b, nil
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest("body: " + err.Error())
	}
	return out, nil
}
