package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error codes carried by *Error.
const (
	// CodeRetriesExhausted: every attempt answered with a transient status.
	CodeRetriesExhausted = "RETRIES_EXHAUSTED"
	// CodeRemoteError: the API reported a known failure with a message.
	CodeRemoteError = "REMOTE_ERROR"
	// CodeUnexpectedStatus: any other non-200 status.
	CodeUnexpectedStatus = "UNEXPECTED_STATUS"
	// CodeJobFailed: the job reached failed or an unrecognised status.
	CodeJobFailed = "JOB_FAILED"
	// CodeJobIncompleteData: the job completed without a data payload.
	CodeJobIncompleteData = "JOB_INCOMPLETE_DATA"
	// CodeJobPollTimeout: the poll deadline or attempt budget ran out.
	CodeJobPollTimeout = "JOB_POLL_TIMEOUT"
)

// knownErrorStatuses carry a structured {"error": "..."} body.
var knownErrorStatuses = map[int]struct{}{
	http.StatusPaymentRequired:     {},
	http.StatusRequestTimeout:      {},
	http.StatusConflict:            {},
	http.StatusInternalServerError: {},
}

// Error is returned for every API and job failure.
type Error struct {
	Code string

	// Action names the operation, e.g. "start crawl job".
	Action string

	// StatusCode is the HTTP status, zero for job-state errors.
	StatusCode int

	JobID  string
	Status JobStatus

	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("client: ")

	switch e.Code {
	case CodeJobFailed:
		fmt.Fprintf(&b, "crawl job %s failed or was stopped: status %q", e.JobID, e.Status)
	case CodeJobIncompleteData:
		fmt.Fprintf(&b, "crawl job %s completed but no data was returned", e.JobID)
	case CodeJobPollTimeout:
		fmt.Fprintf(&b, "crawl job %s did not finish: %s (last status %q)", e.JobID, e.Message, e.Status)
	case CodeUnexpectedStatus:
		fmt.Fprintf(&b, "unexpected error while trying to %s: status code %d", e.Action, e.StatusCode)
	case CodeRetriesExhausted:
		fmt.Fprintf(&b, "failed to %s: status code %d persisted after retries", e.Action, e.StatusCode)
	default:
		fmt.Fprintf(&b, "failed to %s: status code %d: %s", e.Action, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// convertError maps a non-200 response to an *Error. A status from the
// transient set can only reach here once the transport gave up retrying.
func (c *Client) convertError(resp *http.Response, action string) error {
	e := &Error{
		Action:     action,
		StatusCode: resp.StatusCode,
	}

	if c.transport.isTransient(resp.StatusCode) {
		e.Code = CodeRetriesExhausted
		return e
	}

	if _, ok := knownErrorStatuses[resp.StatusCode]; !ok {
		e.Code = CodeUnexpectedStatus
		return e
	}

	e.Code = CodeRemoteError
	e.Message = "Unknown error occurred"

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		e.Message = body.Error
	} else if text := strings.TrimSpace(string(data)); text != "" && err != nil {
		e.Message = text
	}
	return e
}
