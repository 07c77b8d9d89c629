/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrUnauthorized = errors.New("only the host can do that")
	ErrFetchFailed  = errors.New("unable to load questions for those settings")
	ErrFull         = errors.New("session is full")
	ErrInProgress   = errors.New("a match is already in progress")
	ErrCodeSpace    = errors.New("unable to allocate a session code")

	// Dropped without a reply.
	ErrStale     = errors.New("answer is for a question that is not open")
	ErrDuplicate = errors.New("answer already recorded")
)

// silent reports whether err should be dropped instead of replied to.
func silent(err error) bool {
	return errors.Is(err, ErrStale) || errors.Is(err, ErrDuplicate)
}

// message converts err to the text sent to the originating client.
func message(err error) string {
	for _, known := range []error{ErrNotFound, ErrUnauthorized, ErrFetchFailed, ErrFull, ErrInProgress, ErrCodeSpace} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return "something went wrong, please try again"
}
