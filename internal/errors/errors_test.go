package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection refused")

	cases := []struct {
		err   *AppError
		check func(error) bool
		code  string
	}{
		{NewMalformedInputError(MsgInvalidMessageFormat, cause), IsMalformedInputError, "MALFORMED_INPUT"},
		{NewNotReadyError(), IsNotReadyError, "NOT_READY"},
		{NewCollaboratorError(MsgNoTranscription, cause), IsCollaboratorError, "COLLABORATOR_FAILURE"},
		{NewFatalError("transcriber init failed", cause), IsFatalError, "FATAL"},
		{NewValidationError("text is required", nil), IsValidationError, "VALIDATION_ERROR"},
		{NewNotFoundError("unknown event", nil), IsNotFoundError, "NOT_FOUND"},
	}

	for _, tc := range cases {
		if !tc.check(tc.err) {
			t.Fatalf("%s: predicate returned false", tc.err.Type)
		}
		if !tc.check(fmt.Errorf("outer: %w", tc.err)) {
			t.Fatalf("%s: predicate must see through wrapping", tc.err.Type)
		}
		if tc.err.Code != tc.code {
			t.Fatalf("%s: code = %s, want %s", tc.err.Type, tc.err.Code, tc.code)
		}
	}

	if IsNotReadyError(cause) {
		t.Fatalf("plain error must not match")
	}
}

func TestNotReadyMessage(t *testing.T) {
	if got := NewNotReadyError().Error(); got != "Server not ready" {
		t.Fatalf("message = %q", got)
	}
}

func TestClientMessage(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", NewCollaboratorError(MsgAudioFailed, errors.New("bad base64")))
	if got := ClientMessage(err, "fallback"); got != "Audio processing failed" {
		t.Fatalf("ClientMessage = %q", got)
	}
	if got := ClientMessage(errors.New("x"), "fallback"); got != "fallback" {
		t.Fatalf("ClientMessage = %q, want fallback", got)
	}
}

func TestWrapErrorKeepsType(t *testing.T) {
	if WrapError(nil, "noop", ErrorTypeFatal) != nil {
		t.Fatalf("wrapping nil must return nil")
	}

	inner := NewCollaboratorError(MsgNoTranscription, errors.New("timeout"))
	wrapped := WrapError(inner, "transcribe", ErrorTypeFatal)
	if !IsCollaboratorError(wrapped) {
		t.Fatalf("wrapped error lost its type")
	}
	if ClientMessage(wrapped, "") != MsgNoTranscription {
		t.Fatalf("wrapped error lost its client message")
	}

	plain := WrapError(errors.New("disk full"), "startup", ErrorTypeFatal)
	if !IsFatalError(plain) {
		t.Fatalf("plain error should adopt the given type")
	}
}
