// Package errors provides structured error handling for the auth service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// OTP errors
	CodeOtpNotFound Code = "OTP_NOT_FOUND"
	CodeOtpExpired  Code = "OTP_EXPIRED"
	CodeOtpMismatch Code = "OTP_MISMATCH"

	// Ceremony session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeSessionExpired  Code = "SESSION_EXPIRED"

	// Credential errors
	CodeCredentialNotFound      Code = "CREDENTIAL_NOT_FOUND"
	CodeCredentialAlreadyExists Code = "CREDENTIAL_ALREADY_EXISTS"

	// Account errors
	CodeAccountNotFound     Code = "ACCOUNT_NOT_FOUND"
	CodeAccountEmailInvalid Code = "ACCOUNT_EMAIL_INVALID"

	// Ceremony verification errors
	CodeRegistrationVerificationFailed   Code = "REGISTRATION_VERIFICATION_FAILED"
	CodeAuthenticationVerificationFailed Code = "AUTHENTICATION_VERIFICATION_FAILED"

	// CodeMaliciousCounter flags a sign count that failed to strictly
	// increase. Callers may treat it as a cloned-authenticator signal.
	CodeMaliciousCounter Code = "MALICIOUS_COUNTER"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps the error code to a transport status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOtpNotFound, CodeSessionNotFound, CodeCredentialNotFound,
		CodeAccountNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeOtpExpired, CodeSessionExpired, CodeAccountEmailInvalid:
		return http.StatusBadRequest
	case CodeOtpMismatch, CodeRegistrationVerificationFailed,
		CodeAuthenticationVerificationFailed:
		return http.StatusUnauthorized
	case CodeMaliciousCounter:
		return http.StatusForbidden
	case CodeCredentialAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
