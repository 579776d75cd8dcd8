// Package core provides the record-management layer of the commentary
// player list editor.
//
// # Error Codes Reference
//
// Every error shown to a user carries a code support staff can look up here.
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Duplicate id: A player with this commentary id already exists
//	         Action: Pick a different commentary id or edit the existing player
//	         Patterns: "duplicate commentary id"
//
//	REC002 - Not found: No player uses this commentary id
//	         Action: Refresh the list; the player may have been deleted
//	         Patterns: "commentary id not found"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid commentary id (outside 0-999999)
//	         Patterns: "invalid commentary id"
//
//	VAL002 - Invalid player name (empty or longer than 48 characters)
//	         Patterns: "invalid player name"
//
//	VAL003 - Player name too long for the selected file format
//	         Patterns: "player name exceeds"
//
//	VAL004 - Unknown column in a filter or sort
//	         Patterns: "unknown field"
//
//	VAL005 - Invalid page selection
//	         Patterns: "invalid pagination"
//
//	VAL006 - Malformed API request body
//	         Patterns: "invalid request body"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Decode error: The file could not be read with the selected version
//	          Patterns: "decode error"
//
//	FILE002 - File too large
//	          Patterns: "file too large"
//
//	FILE003 - No file selected
//	          Patterns: "no file provided"
//
//	FILE004 - Unknown game version
//	          Patterns: "unknown preset"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - No file loaded
//	         Patterns: "no file loaded"
//
//	SES002 - Load superseded by a newer upload or by closing the file
//	         Patterns: "load superseded"
//
//	SES003 - Request cancelled or timed out
//	         Patterns: "context canceled", "context deadline exceeded"
//
//	SES004 - Close refused because the file has unsaved changes
//	         Patterns: "unsaved changes"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
//	RATE002 - Too many files being opened at once
//	          Patterns: "too many concurrent loads"
//
//	RATE003 - Session limit reached
//	          Patterns: "too many active sessions"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the application logs for the
// original technical error.
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains. The first
// matching pattern wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Decode errors wrap codec detail such as duplicate ids inside the file,
	// so they are matched first.
	{
		pattern: "decode error",
		msg: UserMessage{
			Message: "The file could not be read with the selected version",
			Action:  "Check the game version and that the file is a commentary player list",
			Code:    "FILE001",
		},
	},

	// Record errors
	{
		pattern: "duplicate commentary id",
		msg: UserMessage{
			Message: "A player with this commentary id already exists",
			Action:  "Pick a different commentary id or edit the existing player",
			Code:    "REC001",
		},
	},
	{
		pattern: "commentary id not found",
		msg: UserMessage{
			Message: "No player uses this commentary id",
			Action:  "Refresh the list; the player may have been deleted",
			Code:    "REC002",
		},
	},

	// Validation errors
	{
		pattern: "invalid commentary id",
		msg: UserMessage{
			Message: "Commentary id must be between 0 and 999999",
			Action:  "Enter a whole number in the allowed range",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid player name",
		msg: UserMessage{
			Message: "Player name must be 1 to 48 characters long",
			Action:  "Shorten or fill in the player name",
			Code:    "VAL002",
		},
	},
	{
		pattern: "player name exceeds",
		msg: UserMessage{
			Message: "Player name is too long for this file format",
			Action:  "Use a shorter name or fewer special characters",
			Code:    "VAL003",
		},
	},
	// Request bodies are matched before field errors: a JSON decode error
	// may itself mention an unknown field.
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check that the request body is valid JSON with the documented fields",
			Code:    "VAL006",
		},
	},
	{
		pattern: "unknown field",
		msg: UserMessage{
			Message: "Unknown column",
			Action:  "Filter or sort by one of the listed columns",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid pagination",
		msg: UserMessage{
			Message: "Invalid page selection",
			Action:  "Choose a page from the pager",
			Code:    "VAL005",
		},
	},

	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Make sure you selected the commentary player list file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a commentary file to edit",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unknown preset",
		msg: UserMessage{
			Message: "Unknown game version",
			Action:  "Select one of the listed game versions",
			Code:    "FILE004",
		},
	},

	// Session errors
	{
		pattern: "no file loaded",
		msg: UserMessage{
			Message: "No file is open",
			Action:  "Upload a commentary file first",
			Code:    "SES001",
		},
	},
	{
		pattern: "load superseded",
		msg: UserMessage{
			Message: "This upload was replaced by a newer one",
			Action:  "Nothing to do; the most recent upload is open",
			Code:    "SES002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "SES003",
		},
	},
	{
		pattern: "unsaved changes",
		msg: UserMessage{
			Message: "The file has unsaved changes",
			Action:  "Save the file first, or confirm that the changes should be discarded",
			Code:    "SES004",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "too many concurrent loads",
		msg: UserMessage{
			Message: "The server is busy opening other files",
			Action:  "Please try the upload again in a few seconds",
			Code:    "RATE002",
		},
	},
	{
		pattern: "too many active sessions",
		msg: UserMessage{
			Message: "The editor has reached its limit of open sessions",
			Action:  "Please try again later",
			Code:    "RATE003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when none match.
//
// Example:
//
//	msg := MapError(&RecordError{Op: "create", CommentaryID: 7, Err: ErrDuplicateIdentifier})
//	// msg.Code == "REC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
