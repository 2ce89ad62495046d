package popup

// ErrorCode is the normalized failure reason shared by the completion page and the initiator.
type ErrorCode string

const (
	CodeAccessDenied       ErrorCode = "access_denied"
	CodePopupBlocked       ErrorCode = "popup_blocked"
	CodeSessionExpired     ErrorCode = "session_expired"
	CodeTimeout            ErrorCode = "timeout"
	CodeInvalidState       ErrorCode = "invalid_state"
	CodeInvalidRequest     ErrorCode = "invalid_request"
	CodeInvalidGrant       ErrorCode = "invalid_grant"
	CodeConfigurationError ErrorCode = "configuration_error"
	CodeProviderError      ErrorCode = "provider_error"
	CodeNotAuthorized      ErrorCode = "not_authorized"
	CodeAuthFailed         ErrorCode = "auth_failed"
)

const (
	MessageCancelled     = "Authentication was cancelled. Please try again."
	MessagePopupBlocked  = "Please allow popups for this site and try again."
	MessageExpired       = "Your login session expired. Please try again."
	MessageNotAuthorized = "You are not authorized to access this application."
	MessageCodeExpired   = "The sign-in code expired. Please try again."
	MessageConfiguration = "Sign-in is not configured correctly. Please contact the site owner."
	MessageGeneric       = "Something went wrong. Please try again."
)

// UserMessage maps a code to the fixed text shown to the user. Provider text is never shown.
func UserMessage(code ErrorCode) string {
	switch code {
	case CodeAccessDenied:
		return MessageCancelled
	case CodePopupBlocked:
		return MessagePopupBlocked
	case CodeSessionExpired, CodeTimeout:
		return MessageExpired
	case CodeNotAuthorized:
		return MessageNotAuthorized
	case CodeInvalidGrant:
		return MessageCodeExpired
	case CodeConfigurationError:
		return MessageConfiguration
	default:
		return MessageGeneric
	}
}

// ProviderErrorCode normalizes the "error" parameter of a provider redirect.
func ProviderErrorCode(providerError string) ErrorCode {
	if providerError == string(CodeAccessDenied) {
		return CodeAccessDenied
	}
	return CodeProviderError
}

// ExchangeErrorCode normalizes an OAuth error code returned by the token endpoint.
func ExchangeErrorCode(providerCode string) ErrorCode {
	switch providerCode {
	case "invalid_grant":
		return CodeInvalidGrant
	case "invalid_client", "unauthorized_client":
		return CodeConfigurationError
	default:
		return CodeAuthFailed
	}
}
