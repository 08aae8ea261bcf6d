package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// PDFError describes an extraction failure together with the unit it is isolated to
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Tag         int       `json:"tag,omitempty"`
	ObjectNum   int       `json:"object_num,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	Err         error     `json:"-"`
}

// ErrorType represents the categories of extraction failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeStructureMissing
	ErrorTypeTagUnresolvable
	ErrorTypeGlyphUndecodable
	ErrorTypeMalformedNesting
	ErrorTypeInsufficientGeometry
	ErrorTypeInvalidDocument
	ErrorTypeMalformedPage
	ErrorTypeInvalidStream
	ErrorTypeResourceNotFound
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Sentinels usable with errors.Is; matching is by type only.
var (
	ErrStructureMissing     = &PDFError{Type: ErrorTypeStructureMissing, Message: "document has no structure tree"}
	ErrTagUnresolvable      = &PDFError{Type: ErrorTypeTagUnresolvable, Message: "tag page could not be resolved"}
	ErrGlyphUndecodable     = &PDFError{Type: ErrorTypeGlyphUndecodable, Message: "glyph could not be decoded"}
	ErrMalformedNesting     = &PDFError{Type: ErrorTypeMalformedNesting, Message: "unbalanced marked-content scope"}
	ErrInsufficientGeometry = &PDFError{Type: ErrorTypeInsufficientGeometry, Message: "not enough ruling geometry"}
	ErrInvalidDocument      = &PDFError{Type: ErrorTypeInvalidDocument, Message: "document cannot be opened"}
	ErrMalformedPage        = &PDFError{Type: ErrorTypeMalformedPage, Message: "page cannot be interpreted"}
)

// Error implements the error interface
func (e *PDFError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type.String(), e.Message)
	if e.PageNumber > 0 {
		fmt.Fprintf(&b, " (page %d)", e.PageNumber)
	}
	if e.Context != "" {
		fmt.Fprintf(&b, ": %s", e.Context)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PDFError of the same type
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeStructureMissing:
		return "STRUCTURE_MISSING"
	case ErrorTypeTagUnresolvable:
		return "TAG_UNRESOLVABLE"
	case ErrorTypeGlyphUndecodable:
		return "GLYPH_UNDECODABLE"
	case ErrorTypeMalformedNesting:
		return "MALFORMED_NESTING"
	case ErrorTypeInsufficientGeometry:
		return "INSUFFICIENT_GEOMETRY"
	case ErrorTypeInvalidDocument:
		return "INVALID_DOCUMENT"
	case ErrorTypeMalformedPage:
		return "MALFORMED_PAGE"
	case ErrorTypeInvalidStream:
		return "INVALID_STREAM"
	case ErrorTypeResourceNotFound:
		return "RESOURCE_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeGlyphUndecodable, ErrorTypeMalformedNesting:
		return SeverityInfo
	case ErrorTypeStructureMissing, ErrorTypeTagUnresolvable, ErrorTypeInsufficientGeometry:
		return SeverityWarning
	case ErrorTypeResourceNotFound:
		return SeverityWarning
	case ErrorTypeMalformedPage, ErrorTypeInvalidStream:
		return SeverityError
	case ErrorTypeInvalidDocument:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable determines if an error type lets the run continue.
// Everything below document level is isolated to a glyph, tag or page.
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeInvalidDocument, ErrorTypeUnknown:
		return false
	default:
		return true
	}
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	e := NewPDFError(errorType, message)
	e.Context = context
	return e
}

// WrapError wraps a standard error as a PDFError
func WrapError(errorType ErrorType, err error) *PDFError {
	e := NewPDFError(errorType, errorType.defaultMessage())
	e.Err = err
	return e
}

func (et ErrorType) defaultMessage() string {
	switch et {
	case ErrorTypeStructureMissing:
		return ErrStructureMissing.Message
	case ErrorTypeTagUnresolvable:
		return ErrTagUnresolvable.Message
	case ErrorTypeGlyphUndecodable:
		return ErrGlyphUndecodable.Message
	case ErrorTypeMalformedNesting:
		return ErrMalformedNesting.Message
	case ErrorTypeInsufficientGeometry:
		return ErrInsufficientGeometry.Message
	case ErrorTypeInvalidDocument:
		return ErrInvalidDocument.Message
	case ErrorTypeMalformedPage:
		return ErrMalformedPage.Message
	default:
		return strings.ToLower(strings.ReplaceAll(et.String(), "_", " "))
	}
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// WithTag adds the marked-content tag the error is isolated to
func (e *PDFError) WithTag(tag int) *PDFError {
	e.Tag = tag
	return e
}

// WithObject adds the object number of the offending structure element
func (e *PDFError) WithObject(objNum int) *PDFError {
	e.ObjectNum = objNum
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// ErrorCollection counts isolated failures for one extraction run.
// It is safe for concurrent use.
type ErrorCollection struct {
	mu     sync.Mutex
	counts map[ErrorType]int
	first  map[ErrorType]*PDFError
}

// NewErrorCollection creates an empty collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		counts: make(map[ErrorType]int),
		first:  make(map[ErrorType]*PDFError),
	}
}

// Add records an error; the first occurrence per type is kept as an example
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.counts[err.Type]++
	if _, ok := ec.first[err.Type]; !ok {
		ec.first[err.Type] = err
	}
}

// Count returns how many errors of the given type were recorded
func (ec *ErrorCollection) Count(et ErrorType) int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.counts[et]
}

// Total returns the number of recorded errors
func (ec *ErrorCollection) Total() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	total := 0
	for _, n := range ec.counts {
		total += n
	}
	return total
}

// Counts returns occurrences keyed by type name
func (ec *ErrorCollection) Counts() map[string]int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make(map[string]int, len(ec.counts))
	for et, n := range ec.counts {
		out[et.String()] = n
	}
	return out
}

// First returns the first recorded error of a type, if any
func (ec *ErrorCollection) First(et ErrorType) (*PDFError, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	e, ok := ec.first[et]
	return e, ok
}

// Summary returns a text summary ordered by error type
func (ec *ErrorCollection) Summary() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if len(ec.counts) == 0 {
		return "No errors or warnings"
	}

	types := make([]ErrorType, 0, len(ec.counts))
	for et := range ec.counts {
		types = append(types, et)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	parts := make([]string, 0, len(types))
	for _, et := range types {
		parts = append(parts, fmt.Sprintf("%s=%d", et.String(), ec.counts[et]))
	}
	return strings.Join(parts, ", ")
}
