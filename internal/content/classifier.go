// Package content classifies upload payloads and gates obviously hostile ones.
package content

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Confidence expresses how trustworthy a classification is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Method records how the MIME type was determined.
type Method string

const (
	MethodMagicBytes Method = "magic-bytes"
	MethodExtension  Method = "extension"
	MethodFallback   Method = "fallback"
)

// Classification is the outcome of sniffing a payload.
type Classification struct {
	MIMEType   string
	Confidence Confidence
	Method     Method
}

// extensionTypes supplements mime.TypeByExtension for extensions the host
// mime database may not carry.
var extensionTypes = map[string]string{
	".md":   "text/markdown",
	".log":  "text/plain",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".go":   "text/plain",
	".heic": "image/heic",
}

// Classify determines the MIME type of a payload. Magic-byte detection wins
// with high confidence; otherwise the declared name's extension decides with
// medium confidence; otherwise application/octet-stream with low confidence.
// An empty buffer is not an error, it just cannot be sniffed.
func Classify(buf []byte, declaredName string) Classification {
	if len(buf) > 0 {
		if sniffed, ok := sniffMagic(buf); ok {
			return Classification{MIMEType: sniffed, Confidence: ConfidenceHigh, Method: MethodMagicBytes}
		}
	}

	if ext := strings.ToLower(filepath.Ext(declaredName)); ext != "" {
		if typ := typeForExtension(ext); typ != "" {
			return Classification{MIMEType: typ, Confidence: ConfidenceMedium, Method: MethodExtension}
		}
	}

	return Classification{MIMEType: "application/octet-stream", Confidence: ConfidenceLow, Method: MethodFallback}
}

// sniffMagic runs the payload through the magic-byte detector. Detections
// that rest on content heuristics rather than a real signature (plain text,
// the octet-stream root) are treated as inconclusive.
func sniffMagic(buf []byte) (string, bool) {
	detected := baseType(mimetype.Detect(buf).String())
	switch detected {
	case "application/octet-stream", "text/plain", "":
		return "", false
	}
	return detected, true
}

func typeForExtension(ext string) string {
	if typ := mime.TypeByExtension(ext); typ != "" {
		return baseType(typ)
	}
	return extensionTypes[ext]
}

// baseType strips parameters such as charset from a MIME type.
func baseType(typ string) string {
	if idx := strings.IndexByte(typ, ';'); idx >= 0 {
		typ = typ[:idx]
	}
	return strings.ToLower(strings.TrimSpace(typ))
}

// zipDerived lists types that legitimately sniff as application/zip.
var zipDerived = map[string]bool{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"application/vnd.oasis.opendocument.spreadsheet":                            true,
	"application/java-archive":                                                  true,
	"application/epub+zip":                                                      true,
}

// compatible reports whether a declared type is an acceptable label for a
// sniffed type. Zip containers cover the office formats built on them, and
// the generic octet-stream declaration never contradicts a sniff.
func compatible(declared, sniffed string) bool {
	if declared == sniffed {
		return true
	}
	if declared == "application/octet-stream" {
		return true
	}
	if sniffed == "application/zip" && zipDerived[declared] {
		return true
	}
	// text subtypes are routinely mislabeled among themselves, and structured
	// text (JSON, CSV, XML) is often uploaded under a plain-text label
	if strings.HasPrefix(declared, "text/") {
		if strings.HasPrefix(sniffed, "text/") {
			return true
		}
		switch sniffed {
		case "application/json", "application/xml", "application/x-ndjson":
			return true
		}
	}
	return false
}

// Validate cross-checks the caller-declared MIME type against the sniffed
// one and scans the payload prefix for hostile content. It returns nil when
// the payload is admissible and an error wrapping ErrContentRejected when it
// is not. Validation is pure: it never touches anything but the buffer.
func Validate(buf []byte, declaredMIME, declaredName string) error {
	declared := baseType(declaredMIME)
	cls := Classify(buf, declaredName)

	if declared != "" {
		if cls.Method == MethodMagicBytes {
			if !compatible(declared, cls.MIMEType) {
				return newRejection("declared type %q does not match detected type %q", declared, cls.MIMEType)
			}
		} else if cls.Method == MethodExtension {
			if !compatible(declared, cls.MIMEType) {
				return newRejection("declared type %q does not match extension type %q", declared, cls.MIMEType)
			}
		}
	}

	return scanPrefix(buf, declared, cls)
}

// Validator adapts the package-level checks to an injectable dependency.
type Validator struct{}

// Validate implements the validator contract the upload coordinator expects.
func (Validator) Validate(buf []byte, declaredMIME, declaredName string) error {
	return Validate(buf, declaredMIME, declaredName)
}

// executable header signatures that must not appear in non-executable uploads.
var executableHeaders = [][]byte{
	{0x7f, 'E', 'L', 'F'},    // ELF
	{'M', 'Z'},               // PE/DOS
	{0xfe, 0xed, 0xfa, 0xce}, // Mach-O 32
	{0xfe, 0xed, 0xfa, 0xcf}, // Mach-O 64
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64 little-endian
	{'#', '!', '/'},          // shebang
}

func hasExecutableHeader(buf []byte) bool {
	for _, sig := range executableHeaders {
		if bytes.HasPrefix(buf, sig) {
			return true
		}
	}
	return false
}

var executableTypes = map[string]bool{
	"application/x-executable":                      true,
	"application/x-msdownload":                      true,
	"application/x-mach-binary":                     true,
	"application/vnd.microsoft.portable-executable": true,
	"application/x-sh":                              true,
	"text/x-sh":                                     true,
	"text/x-shellscript":                            true,
	"application/x-elf":                             true,
	"application/octet-stream":                      true,
}
