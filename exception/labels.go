package exception

import "strings"

// Labels resolves message keys to human readable text.
type Labels map[string]string

// DefaultLabels holds the English labels for every message key.
var DefaultLabels = Labels{
	KeyInternalError:      "Internal error",
	KeyParameterNotString: "Parameter {paramName} must be a string",
	KeyParameterRequired:  "Parameter {paramName} is required",
	KeyResourceNotFound:   "Resource {resource} is not available",
	KeyReflectionError:    "Handler {handler} is not available",
	KeyMethodNotFound:     "Method {method} does not exist",
	KeySessionNotFound:    "Session not found or expired",
	KeyWrongEmailFormat:   "Wrong email format",
	KeyWrongPassword:      "Password must be between 6 and 32 characters",
	KeyEmailExists:        "Email already exists",
	KeyAuthentication:     "Wrong email or password",
	KeyEmailNotFound:      "Email not found",
	KeyInvalidToken:       "Invalid or expired token",
	KeyUserNotFound:       "User {userId} not found",
	KeyUnknownCategory:    "Unknown token category {category}",
	KeyMalformedBody:      "Request body must be a JSON object",
}

// Localize renders the label for ex, substituting {param} placeholders.
// Unknown keys render as the key itself.
func (l Labels) Localize(ex Exception) string {
	text, ok := l[ex.MessageKey]
	if !ok {
		return ex.MessageKey
	}
	for name, value := range ex.Params {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}
