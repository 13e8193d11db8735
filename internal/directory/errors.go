package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory groups directory failures for callers that branch on the
// failure class rather than on raw result codes.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// DirectoryError carries categorized context for a failed directory
// operation. Retryable is advisory metadata only: the resolution core never
// retries, because directory failures are frequently deterministic (wrong
// server, deleted object) rather than transient.
type DirectoryError struct {
	Operation  string
	Category   ErrorCategory
	ResultCode uint16
	Message    string
	ServerMsg  string
	DN         string
	Retryable  bool
	Cause      error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.ResultCode > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.ResultCode))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Operation))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, "server: "+e.ServerMsg)
	}
	if e.DN != "" {
		parts = append(parts, "DN: "+e.DN)
	}
	return strings.Join(parts, " - ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

func (e *DirectoryError) IsRetryable() bool {
	return e.Retryable
}

// NewDirectoryError categorizes err for the named operation.
func NewDirectoryError(operation string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	dirErr := &DirectoryError{
		Operation: operation,
		Cause:     err,
	}

	if resultErr, ok := err.(*ldap.Error); ok {
		dirErr.ResultCode = resultErr.ResultCode
		dirErr.ServerMsg = resultErr.Err.Error()
		dirErr.Category = categorizeResultCode(resultErr.ResultCode)
		dirErr.Retryable = isResultCodeRetryable(resultErr.ResultCode)
		dirErr.Message = resultCodeMessage(resultErr.ResultCode)
	} else {
		dirErr.Category = categorizeGenericError(err)
		dirErr.Retryable = isGenericErrorRetryable(err)
		dirErr.Message = err.Error()
	}

	return dirErr
}

// newOperationError reports a failure the client detected itself rather
// than one surfaced by the server.
func newOperationError(operation string, category ErrorCategory, message string) *DirectoryError {
	return &DirectoryError{
		Operation: operation,
		Category:  category,
		Message:   message,
	}
}

// WrapError wraps err with operation context, leaving already-categorized
// errors alone.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if dirErr, ok := err.(*DirectoryError); ok {
		if dirErr.Operation == "" {
			dirErr.Operation = operation
		}
		return dirErr
	}
	return NewDirectoryError(operation, err)
}

func categorizeResultCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "broken pipe"):
		return ErrorCategoryConnection
	case strings.Contains(errStr, "authentication"),
		strings.Contains(errStr, "credentials"),
		strings.Contains(errStr, "password"):
		return ErrorCategoryAuthentication
	case strings.Contains(errStr, "permission"),
		strings.Contains(errStr, "access denied"):
		return ErrorCategoryPermission
	default:
		return ErrorCategoryUnknown
	}
}

func isResultCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	patterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"temporary failure",
	}
	for _, pattern := range patterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// resultCodeMessage renders the protocol's own name for a result code.
func resultCodeMessage(code uint16) string {
	if message, ok := ldap.LDAPResultCodeMap[code]; ok {
		return message
	}
	return fmt.Sprintf("unknown result code %d", code)
}

// GetErrorCategory categorizes any error, wrapped or raw.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}
	if dirErr, ok := err.(*DirectoryError); ok {
		return dirErr.Category
	}
	if resultErr, ok := err.(*ldap.Error); ok {
		return categorizeResultCode(resultErr.ResultCode)
	}
	return categorizeGenericError(err)
}

// IsNotFoundError reports whether err means the object does not exist.
// Resolution branches treat this as "no result here", never as failure.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsAuthenticationError reports whether err is a credential problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsRetryableError reports the advisory retryability classification.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if dirErr, ok := err.(*DirectoryError); ok {
		return dirErr.Retryable
	}
	if resultErr, ok := err.(*ldap.Error); ok {
		return isResultCodeRetryable(resultErr.ResultCode)
	}
	return isGenericErrorRetryable(err)
}
