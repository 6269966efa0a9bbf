package errs

import "regexp"

const maxPublicMessage = 500

var (
	windowsPathRe = regexp.MustCompile(`[A-Za-z]:\\\S+`)
	unixPathRe    = regexp.MustCompile(`/\S+`)
	ipv4Re        = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	userRe        = regexp.MustCompile(`(?i)user[=\s]+\S+`)
	passwordRe    = regexp.MustCompile(`(?i)password[=\s]+\S+`)
)

// Sanitize strips filesystem paths, IPv4 addresses and user/password
// fragments from driver text, then caps its length.
func Sanitize(msg string) string {
	msg = windowsPathRe.ReplaceAllString(msg, "[PATH]")
	msg = unixPathRe.ReplaceAllString(msg, "[PATH]")
	msg = ipv4Re.ReplaceAllString(msg, "[IP]")
	msg = userRe.ReplaceAllString(msg, "user=[REDACTED]")
	msg = passwordRe.ReplaceAllString(msg, "password=[REDACTED]")

	if len(msg) > maxPublicMessage {
		msg = msg[:maxPublicMessage] + "... (truncated)"
	}
	return msg
}
