package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2MB", 2 << 20, true},
		{"500KB", 500 << 10, true},
		{"500 kb", 500 << 10, true},
		{"1.5M", 3 << 19, true},
		{"1GB", 1 << 30, true},
		{"1024", 1024, true},
		{"10B", 10, true},
		{"", 0, false},
		{"MB", 0, false},
		{"-1MB", 0, false},
		{"3TB", 0, false},
		{"1.2.3KB", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseSize(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseSize(%q) = %d, want error", tc.in, got)
		}
	}
}

func TestMatchAccept(t *testing.T) {
	cases := []struct {
		accept, file, mime string
		want               bool
	}{
		{"", "x.exe", "application/octet-stream", true},
		{"image/*", "a.png", "image/png", true},
		{"image/*", "a.pdf", "application/pdf", false},
		{"application/pdf", "a.pdf", "application/pdf", true},
		{"application/pdf", "a.pdf", "application/pdfx", false},
		{".pdf", "Report.PDF", "application/pdf", true},
		{"pdf", "report.pdf", "application/pdf", true},
		{"image/*, .pdf", "cv.pdf", "application/pdf", true},
		{".doc,.docx", "cv.pdf", "application/pdf", false},
		{".pdf", "noext", "application/pdf", false},
		{"*/*", "a.bin", "application/octet-stream", true},
	}
	for _, tc := range cases {
		if got := MatchAccept(tc.accept, tc.file, tc.mime); got != tc.want {
			t.Fatalf("MatchAccept(%q, %q, %q) = %v, want %v", tc.accept, tc.file, tc.mime, got, tc.want)
		}
	}
}

// -----------------------------------------------------------------------------
// Upload fixtures
// -----------------------------------------------------------------------------

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegMagic = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func fakeUpload(name, declared string, magic []byte, size int) *UploadedFile {
	buf := make([]byte, size)
	copy(buf, magic)
	return &UploadedFile{
		Filename:    name,
		Size:        int64(size),
		ContentType: declared,
		Content:     bytes.NewReader(buf),
	}
}

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (m *memFiles) StoreFile(_ context.Context, f *UploadedFile, dest string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, err := io.ReadAll(f.Content)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[dest] = b
	return "/uploads/" + dest, nil
}

func imageElement(t *testing.T) Element {
	t.Helper()
	e, err := NewElement(TypeFile, "photo")
	if err != nil {
		t.Fatal(err)
	}
	e.Properties.Label = "Photo"
	e.Properties.Accept = "image/*"
	e.Properties.MaxSize = "1MB"
	return e
}

func TestStoreUploadImagePolicy(t *testing.T) {
	e := imageElement(t)
	fs := newMemFiles()
	ctx := context.Background()

	big := fakeUpload("holiday.jpg", "image/jpeg", jpegMagic, 2<<20)
	_, err := StoreUpload(ctx, fs, "up", "f1", "photo", e, big, t0)
	rej, ok := IsSecurityRejection(err)
	if !ok || rej.Kind != RejectUpload {
		t.Fatalf("2MB jpeg err = %v, want upload rejection", err)
	}
	if len(fs.files) != 0 {
		t.Fatal("rejected file was stored")
	}

	small := fakeUpload("logo.png", "image/png", pngMagic, 500<<10)
	rec, err := StoreUpload(ctx, fs, "up", "f1", "photo", e, small, t0)
	if err != nil {
		t.Fatalf("500KB png: %v", err)
	}
	if !strings.HasPrefix(rec.MIMEType, "image/") {
		t.Fatalf("mime = %q", rec.MIMEType)
	}
	if rec.OriginalName != "logo.png" || rec.Size != 500<<10 {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.HasPrefix(rec.Path, "/uploads/up/f1/") || !strings.HasSuffix(rec.StoredName, ".png") {
		t.Fatalf("path = %q, stored = %q", rec.Path, rec.StoredName)
	}
	if got := fs.files["up/f1/"+rec.StoredName]; len(got) != 500<<10 {
		t.Fatalf("stored %d bytes", len(got))
	}
}

func TestStoreUploadSniffsInsteadOfTrustingClient(t *testing.T) {
	e := imageElement(t)
	// a text file that claims to be a PNG
	fake := &UploadedFile{
		Filename:    "evil.png",
		Size:        32,
		ContentType: "image/png",
		Content:     strings.NewReader("#!/bin/sh\necho this is not a png\n"),
	}
	_, err := StoreUpload(context.Background(), newMemFiles(), "up", "f1", "photo", e, fake, t0)
	if _, ok := IsSecurityRejection(err); !ok {
		t.Fatalf("err = %v, want rejection", err)
	}
}

func TestStoreUploadNamesAreUnique(t *testing.T) {
	e := imageElement(t)
	fs := newMemFiles()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		rec, err := StoreUpload(context.Background(), fs, "up", "f1", "photo", e, fakeUpload("same.png", "", pngMagic, 64), t0)
		if err != nil {
			t.Fatal(err)
		}
		if seen[rec.StoredName] {
			t.Fatalf("duplicate stored name %s", rec.StoredName)
		}
		seen[rec.StoredName] = true
	}
}

func TestStoreUploadStorageErrorIsNotRejection(t *testing.T) {
	e := imageElement(t)
	fs := newMemFiles()
	fs.err = errors.New("disk full")
	_, err := StoreUpload(context.Background(), fs, "up", "f1", "photo", e, fakeUpload("a.png", "", pngMagic, 64), t0)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := IsSecurityRejection(err); ok {
		t.Fatal("storage error reported as rejection")
	}
	if !strings.Contains(fmt.Sprint(err), "disk full") {
		t.Fatalf("err = %v", err)
	}
}
