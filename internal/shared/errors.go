package shared

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrFetchTimeout     = errors.New("fetch timed out")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrEmptyResult      = errors.New("nothing found")
	ErrStorage          = errors.New("storage error")
	ErrRobotsDisallowed = errors.New("blocked by robots.txt")
)

// FetchError is returned for every network-layer failure. It matches
// ErrFetchTimeout when Timeout is set and ErrFetchFailed otherwise.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: non-2xx status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	if e.Timeout {
		return target == ErrFetchTimeout
	}
	return target == ErrFetchFailed
}

type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
