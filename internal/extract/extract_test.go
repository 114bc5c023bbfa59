package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	doc, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	if _, err := doc.Write([]byte(body)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}

	rels, err := zw.Create("word/_rels/document.xml.rels")
	if err != nil {
		t.Fatalf("create rels: %v", err)
	}
	if _, err := rels.Write([]byte(`<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`)); err != nil {
		t.Fatalf("write rels: %v", err)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docBody = `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Acetone Safety Data Sheet</w:t></w:r></w:p><w:p><w:r><w:t>Highly flammable liquid</w:t></w:r></w:p></w:body></w:document>`

func TestTextFromDocx(t *testing.T) {
	data := buildDocx(t, docBody)

	text, err := Text(context.Background(), data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "acetone.docx")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(text, "Acetone Safety Data Sheet") {
		t.Fatalf("missing first paragraph: %q", text)
	}
	if !strings.Contains(text, "Highly flammable liquid") {
		t.Fatalf("missing second paragraph: %q", text)
	}
}

func TestTextNormalizesZipMimeToDocx(t *testing.T) {
	data := buildDocx(t, docBody)

	text, err := Text(context.Background(), data, "application/zip", "acetone.docx")
	if err != nil {
		t.Fatalf("expected docx extraction from zip mime, got: %v", err)
	}
	if !strings.Contains(text, "Acetone") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTextPlainPassthrough(t *testing.T) {
	text, err := Text(context.Background(), []byte("wear gloves"), "text/plain; charset=utf-8", "notes.txt")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if text != "wear gloves" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTextRejectsPlainZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	if _, err := Text(context.Background(), buf.Bytes(), "application/zip", "notes.zip"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestTextRejectsUnknownMime(t *testing.T) {
	if _, err := Text(context.Background(), []byte{0x00}, "image/png", "photo.png"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
