package domain

// ValidationError is a blocking business-rule violation. Errors are returned
// as data, never raised, so batch callers can continue past a bad entry.
type ValidationError struct {
	Field   string
	Message string
	Code    string
}

// ValidationWarning is an advisory signal. Warnings never block an operation.
type ValidationWarning struct {
	Field   string
	Message string
	Code    string
}

// ValidationResult is the uniform outcome of every validation entry point.
// Errors and warnings keep the order in which they were collected so callers
// can present a complete correction list.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// NewValidationResult returns a result that is valid until an error is added.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddError appends a blocking error and marks the result invalid.
func (r *ValidationResult) AddError(field, message, code string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Code: code})
	r.Valid = false
}

// AddWarning appends an advisory warning. Validity is unaffected.
func (r *ValidationResult) AddWarning(field, message, code string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Code: code})
}

// Merge appends the other result's errors and warnings, preserving order.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if !other.Valid {
		r.Valid = false
	}
}

// HasCode reports whether any error carries the given code.
func (r *ValidationResult) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarningCode reports whether any warning carries the given code.
func (r *ValidationResult) HasWarningCode(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
