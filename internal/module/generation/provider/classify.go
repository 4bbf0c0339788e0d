package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prostudio/server/internal/domain/generation"
)

// Classify maps a non-2xx provider response onto the closed failure
// vocabulary. It is total: any status and any body, including malformed
// JSON, produce a classification.
func Classify(httpStatus int, body []byte) *generation.ClassifiedError {
	env := parseEnvelope(body)

	switch httpStatus {
	case http.StatusPaymentRequired:
		return &generation.ClassifiedError{
			Kind:    generation.FailurePaymentRequired,
			Message: paymentMessage(env),
		}
	case http.StatusTooManyRequests:
		return &generation.ClassifiedError{
			Kind:    generation.FailureRateLimited,
			Message: messageOrDefault(env, "provider rate limit exceeded, retry later"),
		}
	case http.StatusNotFound:
		return &generation.ClassifiedError{
			Kind:    generation.FailureNotFound,
			Message: messageOrDefault(env, "job not found"),
		}
	}

	if msg := envelopeMessage(env); msg != "" {
		return &generation.ClassifiedError{
			Kind:    generation.FailureProvider,
			Message: msg,
		}
	}

	return &generation.ClassifiedError{
		Kind:    generation.FailureUnknown,
		Message: fmt.Sprintf("provider returned HTTP %d %s", httpStatus, http.StatusText(httpStatus)),
	}
}

// parseEnvelope decodes the error body, unwrapping one level of
// string-encoded nesting: some proxies serialize the upstream error
// document into the detail field as a JSON string.
func parseEnvelope(body []byte) *errorEnvelope {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}

	for _, candidate := range []string{env.Detail, env.Error} {
		if !looksLikeJSON(candidate) {
			continue
		}
		var nested errorEnvelope
		if err := json.Unmarshal([]byte(candidate), &nested); err != nil {
			continue
		}
		if nested.Title != "" || nested.Detail != "" || nested.Error != "" {
			if env.Title == "" {
				env.Title = nested.Title
			}
			env.Detail = firstNonEmpty(nested.Detail, nested.Error)
		}
	}

	return &env
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{")
}

// envelopeMessage joins title and detail into a single human-readable
// message. Empty when the envelope carries nothing usable.
func envelopeMessage(env *errorEnvelope) string {
	if env == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if env.Title != "" {
		parts = append(parts, env.Title)
	}
	if detail := firstNonEmpty(env.Detail, env.Error); detail != "" {
		parts = append(parts, detail)
	}
	return strings.Join(parts, ": ")
}

func paymentMessage(env *errorEnvelope) string {
	msg := envelopeMessage(env)
	if msg == "" {
		msg = "payment required"
	}
	if !strings.Contains(strings.ToLower(msg), "billing") {
		msg += " (check your provider billing settings)"
	}
	return msg
}

func messageOrDefault(env *errorEnvelope, fallback string) string {
	if msg := envelopeMessage(env); msg != "" {
		return msg
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
