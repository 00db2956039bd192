package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hargabyte/lens/internal/dashboard"
	"github.com/hargabyte/lens/internal/snapshot"
	"github.com/hargabyte/lens/internal/workspace"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
	See    string `json:"see,omitempty"`
	Cause  error  `json:"-"`
}

func (e ErrorMessage) String() string {
	lines := []string{e.Reason}
	if e.Advice != "" {
		lines = append(lines, e.Advice)
	}
	if e.Cause != nil {
		lines = append(lines, fmt.Sprint(" caused by: ", e.Cause.Error()))
	}
	return strings.Join(lines, "\n")
}

func (e ErrorMessage) Error() string {
	return e.String()
}

func (e ErrorMessage) Unwrap() error {
	return e.Cause
}

type ErrorMessageOption func(in *ErrorMessage) *ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func WithSee(see string) ErrorMessageOption {
	return func(in *ErrorMessage) *ErrorMessage {
		if see != "" {
			in.See = see
		}
		return in
	}
}

// NewErrorMessage builds an HTTP error whose body is an ErrorResponse.
// The message is kept as the internal error so the error handler logs it.
func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, ErrorResponse{Message: msg}).SetInternal(msg)
}

func NotFound(what string) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, what+" not found")
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Unauthorized(advice string) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusUnauthorized,
		"unauthorized",
		WithAdvice(advice),
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithError(err),
	)
}

// fromError maps workspace errors to HTTP errors.
func fromError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, workspace.ErrProjectNotFound):
		return NotFound("project")
	case errors.Is(err, workspace.ErrSnapshotNotFound):
		return NotFound("snapshot")
	case errors.Is(err, snapshot.ErrInvalidSnapshot):
		return BadRequest("check the snapshot kind, id and timestamp", err)
	case errors.Is(err, dashboard.ErrInvalidPanel):
		return BadRequest("check the panel types, time_agg and agg of the dashboard", err)
	case errors.Is(err, dashboard.ErrUnsupportedAgg):
		return NewErrorMessage(
			http.StatusUnprocessableEntity,
			"dashboard can not be built",
			WithAdvice("fix the panel configuration of the project"),
			WithError(err),
		)
	default:
		return InternalServerError(err)
	}
}
