package content

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrContentRejected marks a payload that failed validation. The rejection is
// terminal for the upload attempt; resending the same bytes cannot succeed.
var ErrContentRejected = errors.New("content rejected")

func newRejection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContentRejected, fmt.Sprintf(format, args...))
}

// scanLimit bounds how much of the payload the scanner decodes as text.
const scanLimit = 2048

// markup injection patterns checked in SVG/HTML/XML payloads.
var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[\s>]`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover)\s*=`),
	regexp.MustCompile(`(?i)<iframe[\s>]`),
	regexp.MustCompile(`(?i)<embed[\s>]`),
	regexp.MustCompile(`(?i)<\?php`),
}

// shell/command-injection idioms checked in plain-text payloads.
var shellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\s+/`),
	regexp.MustCompile(`\$\(\s*(curl|wget|nc|sh|bash)\b`),
	regexp.MustCompile("`\\s*(curl|wget|nc)\\b"),
	regexp.MustCompile(`(?i)\b(curl|wget)\b[^\n]{0,120}\|\s*(sh|bash)\b`),
	regexp.MustCompile(`(?i)\beval\s*\(\s*base64_decode\s*\(`),
}

// markupTypes are the text families susceptible to script injection.
func isMarkupType(typ string) bool {
	switch typ {
	case "image/svg+xml", "text/html", "application/xhtml+xml", "text/xml", "application/xml":
		return true
	}
	return false
}

func isTextType(typ string) bool {
	return strings.HasPrefix(typ, "text/") || typ == "application/json" || typ == "text/csv"
}

// scanPrefix inspects the first scanLimit bytes for pattern families that
// reject the payload outright regardless of MIME classification.
func scanPrefix(buf []byte, declared string, cls Classification) error {
	if len(buf) == 0 {
		return nil
	}

	prefix := buf
	if len(prefix) > scanLimit {
		prefix = prefix[:scanLimit]
	}

	// Executable headers hiding behind a benign declared type.
	if hasExecutableHeader(prefix) && !executableTypes[declared] && !executableTypes[cls.MIMEType] {
		return newRejection("executable header in %q payload", displayType(declared, cls))
	}

	text := string(bytes.ToValidUTF8(prefix, nil))

	if isMarkupType(declared) || isMarkupType(cls.MIMEType) || looksLikeMarkup(text) {
		for _, pat := range markupPatterns {
			if pat.MatchString(text) {
				return newRejection("script injection pattern %q", pat.String())
			}
		}
	}

	if isTextType(declared) || isTextType(cls.MIMEType) {
		for _, pat := range shellPatterns {
			if pat.MatchString(text) {
				return newRejection("shell injection pattern %q", pat.String())
			}
		}
	}

	return nil
}

func looksLikeMarkup(text string) bool {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	return strings.HasPrefix(trimmed, "<")
}

func displayType(declared string, cls Classification) string {
	if declared != "" {
		return declared
	}
	return cls.MIMEType
}
