package remote

import (
	"fmt"
	"io"
	"net/http"

	"github.com/hargabyte/lens/internal/api"
)

// Error is a response with a status outside 2xx.
type Error struct {
	StatusCode int
	Reason     string
	Advice     string

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Reason)
	if e.Advice != "" {
		msg += " (" + e.Advice + ")"
	}
	return msg
}

// Unwrap returns the sentinel error the status code maps to, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorFor maps status codes to the sentinel errors they mean for a call.
type ErrorFor map[int]error

// unmarshalJSONResponse decodes a 2xx body into v. A nil v discards it.
// Other statuses become an *Error carrying the server's reason.
func unmarshalJSONResponse(resp *http.Response, v interface{}, errorFor ErrorFor) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if v == nil {
			_, err := io.Copy(io.Discard, resp.Body)
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("unexpected response (status code = %d): %w", resp.StatusCode, err)
		}
		return nil
	}

	e := &Error{StatusCode: resp.StatusCode, cause: errorFor[resp.StatusCode]}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.Reason = fmt.Sprintf("cannot read server message: %s", err)
		return e
	}

	var eresp api.ErrorResponse
	if err := json.Unmarshal(body, &eresp); err == nil && eresp.Message.Reason != "" {
		e.Reason = eresp.Message.Reason
		e.Advice = eresp.Message.Advice
		return e
	}
	e.Reason = http.StatusText(resp.StatusCode)
	if len(body) > 0 {
		e.Reason += ": " + string(body)
	}
	return e
}
