package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyComposition  = errors.New("text or at least one file is required")
	ErrPlatformDisabled  = errors.New("platform is not enabled")
	ErrImageTooLarge     = errors.New("image is still too large at the minimum jpeg quality")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrNoServiceSelected = errors.New("select at least one service")
	ErrInvalidTweetID    = errors.New("tweet id must be numeric")
	ErrNothingToDelete   = errors.New("no post id given")
)

// ElementNotFoundError is returned when a page never grew the element an
// automation step needed.
type ElementNotFoundError struct {
	Affordance string
	Selector   string
	Err        error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("%s not found (%s): %v", e.Affordance, e.Selector, e.Err)
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.Err
}

// AuthError carries the HTTP status a sign-in or session failure maps to.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
