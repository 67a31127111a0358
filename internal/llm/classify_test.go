package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Failure
	}{
		{"nil", nil, FailureUnknown},
		{"status 429", &Error{Provider: "gemini", Status: 429, Message: "Too Many Requests"}, FailureQuotaExceeded},
		{"quota text", errors.New("Quota exceeded for metric generate_content"), FailureQuotaExceeded},
		{"resource exhausted", &Error{Status: 400, Message: "RESOURCE_EXHAUSTED"}, FailureQuotaExceeded},
		{"429 with quota beats 404", &Error{Status: 404, Message: "quota project not found"}, FailureQuotaExceeded},
		{"status 404", &Error{Status: 404, Message: "models/gemini-x is not found"}, FailureModelUnavailable},
		{"wrapped 404", fmt.Errorf("send: %w", &Error{Status: 404}), FailureModelUnavailable},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), FailureTransient},
		{"net timeout", &Error{Err: timeoutErr{}}, FailureTransient},
		{"reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, FailureTransient},
		{"refused errno", syscall.ECONNREFUSED, FailureTransient},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), FailureTransient},
		{"url error", &url.Error{Op: "Post", URL: "https://example.test", Err: errors.New("tls: bad record")}, FailureTransient},
		{"dns", &net.DNSError{Err: "no such host", Name: "generativelanguage.googleapis.com"}, FailureTransient},
		{"500", &Error{Status: 500, Message: "internal"}, FailureUnknown},
		{"400", &Error{Status: 400, Message: "invalid argument"}, FailureUnknown},
		{"plain", errors.New("boom"), FailureUnknown},
		{"canceled", context.Canceled, FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailure_String(t *testing.T) {
	tests := map[Failure]string{
		FailureQuotaExceeded:    "QuotaExceeded",
		FailureModelUnavailable: "ModelUnavailable",
		FailureTransient:        "Transient",
		FailureUnknown:          "Unknown",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("Failure(%d).String() = %q, want %q", int(f), got, want)
		}
	}
}
