package logging

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/benelink/benelink-go/internal/util"
)

// wireSecretFields lists the JSON fields whose values never reach a wire log
// in the clear. Token responses carry the first four; some authorization
// servers echo an id_token alongside.
var wireSecretFields = []string{
	"access_token",
	"refresh_token",
	"client_secret",
	"code",
	"id_token",
}

// RedactBody masks credential material in a request or response body before it
// is written to a wire log. JSON bodies get field-level redaction, form bodies
// are masked parameter by parameter, and anything else passes through
// unchanged.
func RedactBody(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return body
	}

	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/x-www-form-urlencoded") {
		return []byte(util.MaskSensitiveQuery(string(body)))
	}
	if strings.Contains(ct, "json") {
		return redactJSON(body)
	}

	// Content type missing or generic: still redact anything that looks like JSON.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return redactJSON(body)
	}
	return body
}

// redactJSON replaces the values of known secret fields with their masked
// form. Invalid JSON is returned untouched.
func redactJSON(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}

	redacted := body
	for _, field := range wireSecretFields {
		value := gjson.GetBytes(redacted, field)
		if !value.Exists() || value.Type != gjson.String {
			continue
		}
		updated, errSet := sjson.SetBytes(redacted, field, util.HideSecret(value.String()))
		if errSet != nil {
			continue
		}
		redacted = updated
	}
	return redacted
}
