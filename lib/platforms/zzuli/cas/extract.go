package cas

import (
	"regexp"
	"strings"
)

var (
	ltRegex        = regexp.MustCompile(`"lt"\s*:\s*"([^"]+)"`)
	executionRegex = regexp.MustCompile(`"execution"\s*:\s*"([^"]+)"`)
	messageRegex   = regexp.MustCompile(`"msg"\s*:\s*"([^"]+)"`)

	successRegex = regexp.MustCompile(`"success"\s*:\s*true\b`)
	codeRegex    = regexp.MustCompile(`"code"\s*:\s*(?:"0"|0)\s*[,}]`)
)

// invalidation markers shown by the downstream system when the ticket it
// received is no longer valid.
var invalidationMarkers = []string{"凭证已失效", "重新登录"}

const defaultRejectedMessage = "用户名或密码错误"

func extractGroup(re *regexp.Regexp, body string) (string, bool) {
	match := re.FindStringSubmatch(body)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// extractLT finds the login ticket in the jsonp callback of the getlt request.
func extractLT(body string) (string, bool) {
	return extractGroup(ltRegex, body)
}

// extractExecution finds the execution token in the jsonp callback of the getlt request.
func extractExecution(body string) (string, bool) {
	return extractGroup(executionRegex, body)
}

// extractMessage returns the error message of a portal response, or fallback.
func extractMessage(body, fallback string) string {
	msg, ok := extractGroup(messageRegex, body)
	if !ok {
		return fallback
	}
	return msg
}

// portalAccepted recognizes every success encoding the portal answers with:
// "success":true, "code":"0" and "code":0.
func portalAccepted(body string) bool {
	return successRegex.MatchString(body) || codeRegex.MatchString(body)
}

// IsInvalidated reports whether a downstream page tells the user their
// credential expired.
func IsInvalidated(body string) bool {
	for _, marker := range invalidationMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
