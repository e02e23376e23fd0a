package document

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func newTestValidator() *Validator {
	return NewValidator(1<<20, []string{
		"text/plain", "text/markdown", "text/html", "application/json",
	})
}

func TestValidate_EmptyDocument(t *testing.T) {
	res, err := newTestValidator().Validate(nil, "empty.txt", "")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if res.Valid {
		t.Error("result should not be valid")
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != ReasonEmpty {
		t.Errorf("expected single reason %q, got %v", ReasonEmpty, res.Reasons)
	}
}

func TestValidate_SizeExceeded(t *testing.T) {
	v := NewValidator(10, []string{"text/plain"})
	res, err := v.Validate([]byte("this is more than ten bytes"), "big.txt", "")
	if !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
	if res.Reasons[0] != ReasonSizeExceeded {
		t.Errorf("expected size_exceeded reason, got %v", res.Reasons)
	}
}

func TestValidate_UnsupportedType(t *testing.T) {
	// PNG magic bytes sniff as image/png, which is not in the allow-list.
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
	_, err := newTestValidator().Validate(png, "image.png", "image/png")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestValidate_WhitespaceOnlyContent(t *testing.T) {
	_, err := newTestValidator().Validate([]byte("   \n\t  \n"), "blank.txt", "")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestValidate_Success(t *testing.T) {
	content := []byte("# Title\n\nSome paragraph of text.\n\n- item one\n- item two\n")
	res, err := newTestValidator().Validate(content, "notes.md", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Fatal("expected valid result")
	}
	if res.Hash != HashBytes(content) {
		t.Error("hash mismatch")
	}
	if res.MIMEType != "text/markdown" {
		t.Errorf("expected text/markdown via extension fallback, got %s", res.MIMEType)
	}
	if !res.Structure.HasHeadings {
		t.Error("expected headings flag")
	}
	if !res.Structure.HasLists {
		t.Error("expected lists flag")
	}
	if res.Structure.ParagraphCount != 3 {
		t.Errorf("expected 3 paragraphs, got %d", res.Structure.ParagraphCount)
	}
}

func TestValidate_UnderlineHeading(t *testing.T) {
	content := []byte("Title\n=====\n\nBody text here.\n")
	res, err := newTestValidator().Validate(content, "doc.txt", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Structure.HasHeadings {
		t.Error("expected underline-style heading to be detected")
	}
}

func TestValidate_ShortCircuitOrder(t *testing.T) {
	// An empty document must report only the emptiness, not later checks.
	res, _ := NewValidator(0, nil).Validate(nil, "x.bin", "")
	if len(res.Reasons) != 1 {
		t.Errorf("expected short circuit with one reason, got %v", res.Reasons)
	}
}

func TestDecodeText_UTF8(t *testing.T) {
	got, err := DecodeText([]byte("héllo wörld"))
	if err != nil || got != "héllo wörld" {
		t.Fatalf("UTF-8 round trip failed: %q, %v", got, err)
	}
}

func TestDecodeText_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("bom text")...)
	got, err := DecodeText(data)
	if err != nil || got != "bom text" {
		t.Fatalf("expected BOM stripped, got %q, %v", got, err)
	}
}

func TestDecodeText_UTF16LE(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("utf-16 content"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeText(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "utf-16 content" {
		t.Errorf("expected decoded UTF-16, got %q", got)
	}
}

func TestDecodeText_Latin1(t *testing.T) {
	enc := charmap.ISO8859_1.NewEncoder()
	data, err := enc.Bytes([]byte("café naïve"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(data, []byte("café naïve")) {
		t.Fatal("test setup: expected non-UTF-8 bytes")
	}
	got, err := DecodeText(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "café naïve" {
		t.Errorf("expected Latin-1 decode, got %q", got)
	}
}

func TestDecodeText_Windows1252(t *testing.T) {
	// 0x93/0x94 are curly quotes in Windows-1252 and C1 controls in Latin-1.
	data := []byte{0x93, 'q', 'u', 'o', 't', 'e', 'd', 0x94}
	got, err := DecodeText(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "“") || !strings.Contains(got, "”") {
		t.Errorf("expected curly quotes from Windows-1252, got %q", got)
	}
}

func TestHashBytes_Deterministic(t *testing.T) {
	a := HashBytes([]byte("same content"))
	b := HashBytes([]byte("same content"))
	if a != b {
		t.Error("hash of identical content differs")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
