package csvimport

import "fmt"

// RowError is a problem with one line of an uploaded file
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Error formats the error as "Row N: message"
func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// ErrorCollection accumulates row errors up to a limit while still
// counting everything past it
type ErrorCollection struct {
	errors []RowError
	limit  int
	total  int
}

// NewErrorCollection creates a collection keeping at most limit errors.
// A non-positive limit means 100.
func NewErrorCollection(limit int) *ErrorCollection {
	if limit <= 0 {
		limit = 100
	}
	return &ErrorCollection{limit: limit}
}

// Add records err
func (c *ErrorCollection) Add(err RowError) {
	c.total++
	if len(c.errors) < c.limit {
		c.errors = append(c.errors, err)
	}
}

// Addf records a formatted message for row
func (c *ErrorCollection) Addf(row int, format string, args ...any) {
	c.Add(RowError{Row: row, Message: fmt.Sprintf(format, args...)})
}

// Count returns the number of errors added, including dropped ones
func (c *ErrorCollection) Count() int {
	return c.total
}

// HasErrors reports whether any error was added
func (c *ErrorCollection) HasErrors() bool {
	return c.total > 0
}

// IsTruncated reports whether errors were dropped past the limit
func (c *ErrorCollection) IsTruncated() bool {
	return c.total > len(c.errors)
}

// Errors returns the kept errors
func (c *ErrorCollection) Errors() []RowError {
	return c.errors
}

// Messages returns the kept errors as "Row N: message" strings
func (c *ErrorCollection) Messages() []string {
	out := make([]string, len(c.errors))
	for i, e := range c.errors {
		out[i] = e.Error()
	}
	return out
}
