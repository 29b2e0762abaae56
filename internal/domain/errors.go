package domain

import (
	"errors"
	"fmt"
)

// NotFoundError reports an absent path segment, file, transaction or order.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Name)
}

func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// UpstreamError wraps a failure of the remote file store or a payment gateway.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func NewUpstreamError(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// TimeoutError reports an exceeded per-item or whole-batch search budget.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Operation)
}

func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{Operation: operation}
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// UnsupportedFormatError reports an unrecognized conversion target.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format '%s'", e.Format)
}

func IsUnsupportedFormat(err error) bool {
	var uf *UnsupportedFormatError
	return errors.As(err, &uf)
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// VerificationMismatchError reports a callback that claimed success while the
// independent gateway verification disagreed.
type VerificationMismatchError struct {
	MerchantTransactionID string
	GatewayStatus         string
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("verification mismatch for transaction %s: gateway reported '%s'",
		e.MerchantTransactionID, e.GatewayStatus)
}

// ErrEmptyDocument is returned when a PDF with zero pages is given to the
// preview renderer.
var ErrEmptyDocument = errors.New("document has no pages")

// ErrConfigurationMissing distinguishes "no active gateway configuration" from
// transient upstream failures in payment endpoints.
var ErrConfigurationMissing = errors.New("payment gateway configuration missing or incomplete")
