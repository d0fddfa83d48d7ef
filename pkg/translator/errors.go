package translator

import (
	"errors"
	"fmt"
)

// ErrUnexpected hides peer failures that are not structured peer errors.
var ErrUnexpected = errors.New("unexpected translator proxy client error")

// NotReadyError is returned while backends are still being loaded or
// discovered. Clients should retry later.
type NotReadyError struct {
	Message string
}

func (e *NotReadyError) Error() string {
	return e.Message
}

func errNotLoaded() error {
	return &NotReadyError{Message: "Models have not been loaded yet."}
}

func errNotDetermined() error {
	return &NotReadyError{Message: "Models have not been determined yet."}
}

// UnsupportedLanguageError is returned for a language no backend handles.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("Language '%s' is not supported.", e.Language)
}

// UnsupportedLanguagePairError is returned when both languages are known
// but no chain of backends connects them.
type UnsupportedLanguagePairError struct {
	Source string
	Target string
}

func (e *UnsupportedLanguagePairError) Error() string {
	return fmt.Sprintf("Translation '%s' to '%s' not supported.", e.Source, e.Target)
}

// IsUnsupportedInput reports whether err was caused by the request itself.
func IsUnsupportedInput(err error) bool {
	var lang *UnsupportedLanguageError
	var pair *UnsupportedLanguagePairError
	return errors.As(err, &lang) || errors.As(err, &pair)
}

// IsNotReady reports whether err is a NotReadyError.
func IsNotReady(err error) bool {
	var nr *NotReadyError
	return errors.As(err, &nr)
}
