package logging

import (
	"bytes"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingRoundTripper wraps an http.RoundTripper and records every exchange
// through a WireLogger. The response handed back to the caller is untouched;
// the logger works on its own copies. Installing the round tripper on the
// shared HTTP client keeps the authorization core free of logging concerns.
type LoggingRoundTripper struct {
	base   http.RoundTripper
	logger *WireLogger
}

// NewLoggingRoundTripper wraps base with wire logging. A nil base falls back
// to http.DefaultTransport.
func NewLoggingRoundTripper(base http.RoundTripper, logger *WireLogger) *LoggingRoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingRoundTripper{base: base, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.logger.IsEnabled() {
		return t.base.RoundTrip(req)
	}

	requestTimestamp := time.Now()

	var requestBody []byte
	if req.Body != nil {
		data, errRead := io.ReadAll(req.Body)
		if errClose := req.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close request body for wire logging")
		}
		if errRead != nil {
			return nil, errRead
		}
		requestBody = data
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	responseBody, errRead := io.ReadAll(resp.Body)
	if errClose := resp.Body.Close(); errClose != nil {
		log.WithError(errClose).Warn("failed to close response body for wire logging")
	}
	if errRead != nil {
		return nil, errRead
	}
	resp.Body = io.NopCloser(bytes.NewReader(responseBody))

	if errLog := t.logger.LogExchange(req.URL.String(), req.Method, req.Header, requestBody, resp.StatusCode, resp.Header, responseBody, requestTimestamp, time.Now()); errLog != nil {
		log.WithError(errLog).Warn("failed to write wire log")
	}

	return resp, nil
}
