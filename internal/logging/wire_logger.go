package logging

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/benelink/benelink-go/internal/buildinfo"
	"github.com/benelink/benelink-go/internal/util"
)

var wireLogID atomic.Uint64

// WireLogger captures complete token and resource HTTP exchanges as individual
// files on disk when request logging is enabled. Credential material is masked
// or redacted before anything is written.
type WireLogger struct {
	// enabled indicates whether wire logging is currently active. It can be
	// flipped at runtime by the config watcher.
	enabled atomic.Bool

	// logsDir is the directory where exchange logs are stored.
	logsDir string
}

// NewWireLogger creates a file-based wire logger rooted at logsDir.
//
// Parameters:
//   - enabled: Whether wire logging should start enabled
//   - logsDir: The directory where exchange log files are written
//
// Returns:
//   - *WireLogger: A new wire logger instance
func NewWireLogger(enabled bool, logsDir string) *WireLogger {
	l := &WireLogger{logsDir: logsDir}
	l.enabled.Store(enabled)
	return l
}

// IsEnabled returns whether wire logging is currently enabled.
func (l *WireLogger) IsEnabled() bool {
	return l != nil && l.enabled.Load()
}

// SetEnabled updates the wire logging enabled state at runtime.
func (l *WireLogger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// LogExchange writes one complete request/response cycle to its own log file.
// The response body is decompressed according to Content-Encoding before
// writing; a decompression failure annotates the entry instead of dropping it.
//
// Parameters:
//   - requestURL: The request URL
//   - method: The HTTP method
//   - requestHeaders: The request headers
//   - requestBody: The request body
//   - statusCode: The response status code
//   - responseHeaders: The response headers
//   - responseBody: The raw response data
//   - requestTimestamp: When the request was sent
//   - responseTimestamp: When the response arrived
//
// Returns:
//   - error: An error if logging fails, nil otherwise
func (l *WireLogger) LogExchange(requestURL, method string, requestHeaders map[string][]string, requestBody []byte, statusCode int, responseHeaders map[string][]string, responseBody []byte, requestTimestamp, responseTimestamp time.Time) error {
	if !l.IsEnabled() {
		return nil
	}

	if errEnsure := l.ensureLogsDir(); errEnsure != nil {
		return fmt.Errorf("failed to create logs directory: %w", errEnsure)
	}

	filename := l.generateFilename(requestURL)
	filePath := filepath.Join(l.logsDir, filename)

	responseToWrite, decompressErr := util.DecompressBody(responseBody, headerValue(responseHeaders, "Content-Encoding"))
	if decompressErr != nil {
		responseToWrite = responseBody
	}
	responseToWrite = RedactBody(responseToWrite, headerValue(responseHeaders, "Content-Type"))
	requestToWrite := RedactBody(requestBody, headerValue(requestHeaders, "Content-Type"))

	logFile, errOpen := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if errOpen != nil {
		return fmt.Errorf("failed to create log file: %w", errOpen)
	}

	writeErr := writeExchange(logFile, requestURL, method, requestHeaders, requestToWrite, statusCode, responseHeaders, responseToWrite, decompressErr, requestTimestamp, responseTimestamp)
	if errClose := logFile.Close(); errClose != nil {
		log.WithError(errClose).Warn("failed to close wire log file")
		if writeErr == nil {
			return errClose
		}
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write log file: %w", writeErr)
	}

	return nil
}

// ensureLogsDir creates the logs directory if it doesn't exist.
func (l *WireLogger) ensureLogsDir() error {
	if _, err := os.Stat(l.logsDir); os.IsNotExist(err) {
		return os.MkdirAll(l.logsDir, 0o755)
	}
	return nil
}

// generateFilename creates a sanitized filename from the URL path and current timestamp.
// Format: v2-o-token-2026-08-20T180312-17.log
func (l *WireLogger) generateFilename(requestURL string) string {
	path := requestURL
	if parsed, errParse := url.Parse(requestURL); errParse == nil && parsed.Path != "" {
		path = parsed.Path
	} else if strings.Contains(path, "?") {
		path = strings.Split(path, "?")[0]
	}

	path = strings.TrimPrefix(path, "/")
	sanitized := sanitizeForFilename(path)
	timestamp := time.Now().Format("2006-01-02T150405")
	id := wireLogID.Add(1)

	return fmt.Sprintf("%s-%s-%d.log", sanitized, timestamp, id)
}

var (
	filenameUnsafe  = regexp.MustCompile(`[<>:"|?*\s]`)
	filenameHyphens = regexp.MustCompile(`-+`)
)

// sanitizeForFilename replaces characters that are not safe for filenames.
func sanitizeForFilename(path string) string {
	sanitized := strings.ReplaceAll(path, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	sanitized = filenameUnsafe.ReplaceAllString(sanitized, "-")
	sanitized = filenameHyphens.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "root"
	}
	return sanitized
}

// headerValue returns the first value of the named header, case-insensitively.
func headerValue(headers map[string][]string, name string) string {
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// maskURL masks sensitive query parameter values in a URL before it reaches a
// log file. Refresh requests carry the grant in the query string.
func maskURL(requestURL string) string {
	parsed, errParse := url.Parse(requestURL)
	if errParse != nil || parsed.RawQuery == "" {
		return requestURL
	}
	parsed.RawQuery = util.MaskSensitiveQuery(parsed.RawQuery)
	return parsed.String()
}

func writeExchange(
	w io.Writer,
	requestURL, method string,
	requestHeaders map[string][]string,
	requestBody []byte,
	statusCode int,
	responseHeaders map[string][]string,
	responseBody []byte,
	decompressErr error,
	requestTimestamp time.Time,
	responseTimestamp time.Time,
) error {
	if requestTimestamp.IsZero() {
		requestTimestamp = time.Now()
	}

	if _, errWrite := io.WriteString(w, "=== REQUEST INFO ===\n"); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, fmt.Sprintf("Version: %s\n", buildinfo.Version)); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, fmt.Sprintf("URL: %s\n", maskURL(requestURL))); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, fmt.Sprintf("Method: %s\n", method)); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, fmt.Sprintf("Timestamp: %s\n", requestTimestamp.Format(time.RFC3339Nano))); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, "\n"); errWrite != nil {
		return errWrite
	}

	if _, errWrite := io.WriteString(w, "=== HEADERS ===\n"); errWrite != nil {
		return errWrite
	}
	for key, values := range requestHeaders {
		for _, value := range values {
			masked := util.MaskSensitiveHeaderValue(key, value)
			if _, errWrite := io.WriteString(w, fmt.Sprintf("%s: %s\n", key, masked)); errWrite != nil {
				return errWrite
			}
		}
	}
	if _, errWrite := io.WriteString(w, "\n"); errWrite != nil {
		return errWrite
	}

	if _, errWrite := io.WriteString(w, "=== REQUEST BODY ===\n"); errWrite != nil {
		return errWrite
	}
	if _, errWrite := w.Write(requestBody); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, "\n\n"); errWrite != nil {
		return errWrite
	}

	if _, errWrite := io.WriteString(w, "=== RESPONSE ===\n"); errWrite != nil {
		return errWrite
	}
	if _, errWrite := io.WriteString(w, fmt.Sprintf("Status: %d\n", statusCode)); errWrite != nil {
		return errWrite
	}
	if !responseTimestamp.IsZero() {
		if _, errWrite := io.WriteString(w, fmt.Sprintf("Timestamp: %s\n", responseTimestamp.Format(time.RFC3339Nano))); errWrite != nil {
			return errWrite
		}
	}
	for key, values := range responseHeaders {
		for _, value := range values {
			if _, errWrite := io.WriteString(w, fmt.Sprintf("%s: %s\n", key, value)); errWrite != nil {
				return errWrite
			}
		}
	}
	if _, errWrite := io.WriteString(w, "\n"); errWrite != nil {
		return errWrite
	}
	if _, errWrite := w.Write(responseBody); errWrite != nil {
		return errWrite
	}
	if decompressErr != nil {
		if _, errWrite := io.WriteString(w, fmt.Sprintf("\n[DECOMPRESSION ERROR: %v]", decompressErr)); errWrite != nil {
			return errWrite
		}
	}
	if _, errWrite := io.WriteString(w, "\n"); errWrite != nil {
		return errWrite
	}

	return nil
}
