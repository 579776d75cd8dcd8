package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/cpleditor/internal/codec"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate id maps correctly",
			err:         &RecordError{Op: "create", CommentaryID: 7, Err: ErrDuplicateIdentifier},
			wantCode:    "REC001",
			wantMessage: "A player with this commentary id already exists",
		},
		{
			name:        "not found maps correctly",
			err:         &RecordError{Op: "delete", CommentaryID: 7, Err: ErrNotFound},
			wantCode:    "REC002",
			wantMessage: "No player uses this commentary id",
		},
		{
			name:        "validation error maps correctly",
			err:         ValidateUpsert(UpsertInput{CommentaryID: -1, PlayerName: "Amy"}),
			wantCode:    "VAL001",
			wantMessage: "Commentary id must be between 0 and 999999",
		},
		{
			name:        "player name validation maps correctly",
			err:         ValidateUpsert(UpsertInput{CommentaryID: 1}),
			wantCode:    "VAL002",
			wantMessage: "Player name must be 1 to 48 characters long",
		},
		{
			name:        "codec field overflow maps correctly",
			err:         &RecordError{Op: "create", CommentaryID: 5, Err: fmt.Errorf("%w: player name exceeds 192 bytes", codec.ErrFieldTooLong)},
			wantCode:    "VAL003",
			wantMessage: "Player name is too long for this file format",
		},
		{
			name:        "unknown field maps correctly",
			err:         fmt.Errorf("%w: %q", ErrUnknownField, "team"),
			wantCode:    "VAL004",
			wantMessage: "Unknown column",
		},
		{
			name:        "decode error wins over embedded duplicate text",
			err:         &codec.DecodeError{Preset: "2021", Err: fmt.Errorf("%w: 5", codec.ErrDuplicateIdentifier)},
			wantCode:    "FILE001",
			wantMessage: "The file could not be read with the selected version",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("file too large: 20MB exceeds limit"),
			wantCode:    "FILE002",
			wantMessage: "File exceeds the maximum size limit",
		},
		{
			name:        "no file loaded maps correctly",
			err:         ErrNotLoaded,
			wantCode:    "SES001",
			wantMessage: "No file is open",
		},
		{
			name:        "deadline maps correctly",
			err:         fmt.Errorf("load: %w", context.DeadlineExceeded),
			wantCode:    "SES003",
			wantMessage: "Request timed out",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "session limit maps correctly",
			err:         errors.New("too many active sessions"),
			wantCode:    "RATE003",
			wantMessage: "The editor has reached its limit of open sessions",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE COMMENTARY ID 4"),
			wantCode:    "REC001",
			wantMessage: "A player with this commentary id already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := &RecordError{Op: "create", CommentaryID: 1, Err: ErrDuplicateIdentifier}
	result := FormatUserError(err)

	expected := "A player with this commentary id already exists (Code: REC001). Pick a different commentary id or edit the existing player"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrLoadSuperseded,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("update: %w", ErrNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "No player uses this commentary id" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})
}
