package parsing

import (
	"fmt"

	"github.com/jonathan/resume-tailor/internal/types"
)

// ParseError represents a document that could not be decoded into text
type ParseError struct {
	Format  types.DocumentFormat
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error (%s): %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error (%s): %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
