package models

import "errors"

// Lookup errors. Backend-specific "not found" errors wrap ErrNotFound so callers
// can test either the specific or the generic sentinel.
var (
	ErrNotFound        = errors.New("not found")
	ErrUserNotFound    = notFound("user not found")
	ErrSnippetNotFound = notFound("snippet not found")
	ErrTagNotFound     = notFound("tag not found")
	ErrSessionNotFound = notFound("session not found")
)

// Conflict errors.
var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
	ErrSlugTaken     = errors.New("slug already taken")
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("authentication required")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("you don't have permission to modify this snippet")
)

// Backup errors.
var (
	ErrBackupNotFound    = notFound("backup not found")
	ErrBackupExists      = errors.New("backup already exists")
	ErrInvalidBackupName = errors.New("invalid backup name: must be lowercase alphanumeric with hyphens")
	ErrBackupTooLarge    = errors.New("backup exceeds size limit")
	ErrTooManyBackups    = errors.New("maximum number of backups reached")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
