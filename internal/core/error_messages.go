package core

// error_messages.go maps technical errors to operator-facing messages with a
// support code. Operators quote the code; support looks it up here.
//
// # Database (DB001-DB099)
//
//	DB001 - Connection failed: the database server could not be reached
//	DB002 - Transaction rolled back: nothing was changed
//	DB003 - Timeout: the operation took too long
//	DB004 - Deadlock: the database was busy with conflicting operations
//	DB005 - Permission denied: the configured role lacks a privilege
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Invalid argument: a filter or field value is malformed
//	VAL002 - Nothing to export: the selection is empty
//
// # Files (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - File not found
//	FILE003 - Unsupported file type
//
// # Jobs (JOB001-JOB099)
//
//	JOB001 - System busy: too many background jobs
//	JOB002 - Job not found
//	JOB003 - Request cancelled
//
// # Default (ERR000)
//
//	ERR000 - Unknown error: check the application log for the technical error
//
// Sentinel errors are matched with errors.Is first. Remaining errors are
// matched case-insensitively against errorPatterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order, so more specific sentinels come first.
var sentinelMessages = []sentinelMessage{
	{ErrTooManyJobs, UserMessage{"Too many background jobs are running", "Please wait a moment and try again", "JOB001"}},
	{ErrNotFound, UserMessage{"The requested item was not found", "It may have expired. Start the operation again", "JOB002"}},
	{context.Canceled, UserMessage{"The request was cancelled", "Please try again", "JOB003"}},
	{context.DeadlineExceeded, UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB003"}},
	{ErrEmptyExport, UserMessage{"There are no records to export", "Adjust the filter so at least one record is selected", "VAL002"}},
	{ErrInvalidArgument, UserMessage{"A value is not valid", "Check that IDs are whole numbers and dates are YYYY-MM-DD", "VAL001"}},
	{ErrTransaction, UserMessage{"The change was rolled back and nothing was saved", "Please try again", "DB002"}},
	{ErrConnection, UserMessage{"Unable to connect to database", "Check DATABASE_URL and that the server is running", "DB001"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB001"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB001"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB003"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB004"}},
	{"permission denied", UserMessage{"The database role lacks a required privilege", "Ask an administrator to grant access", "DB005"}},
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller parts", "FILE001"}},
	{"no such file", UserMessage{"File not found", "Check the path and try again", "FILE002"}},
	{"unsupported file type", UserMessage{"Unsupported file type", "Use an .xlsx or .csv file", "FILE003"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error into a UserMessage.
// A nil error yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
