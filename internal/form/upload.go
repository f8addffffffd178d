// internal/form/upload.go
//
// Forms engine – upload policy.
//
// Context
//   A file element carries two free-text policy fields: maxSize (“2MB”,
//   “500KB”) and accept (“image/*,.pdf”).  ParseSize and MatchAccept isolate
//   that parsing so it can be tested without the submission pipeline.
//   StoreUpload applies the policy to one uploaded file and, when it passes,
//   hands the bytes to the host FileStore.
//
// Notes
//   •  Sizes use a 1024-based unit table.  A bare number is bytes.
//   •  The MIME type is sniffed from content, never trusted from the client.
//      The declared type is only used when sniffing finds nothing specific.
//   •  Stored names are timestamp + random suffix + original extension so two
//      uploads of “cv.pdf” in the same second never collide.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// UploadedFile is the raw file value found in submission data.
type UploadedFile struct {
	Filename    string
	Size        int64
	ContentType string // as declared by the client
	Content     io.ReadSeeker

	sniffed string
}

// FileStore persists upload bytes.  Writes must be atomic per file.
type FileStore interface {
	StoreFile(ctx context.Context, f *UploadedFile, dest string) (string, error)
}

// StoredFile replaces an UploadedFile in persisted submission data.
type StoredFile struct {
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	MIMEType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// MIME sniffs the content type once and rewinds the reader.
func (u *UploadedFile) MIME() (string, error) {
	if u.sniffed != "" {
		return u.sniffed, nil
	}
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
	if u.Content == nil {
		u.sniffed = declared
		return u.sniffed, nil
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	m, err := mimetype.DetectReader(u.Content)
	if _, serr := u.Content.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return "", fmt.Errorf("sniff upload: %w", err)
	}
	sniffed := strings.SplitN(m.String(), ";", 2)[0]
	if sniffed == "application/octet-stream" && declared != "" {
		sniffed = declared
	}
	u.sniffed = sniffed
	return u.sniffed, nil
}

// Ext returns the lower-case extension of the original file name, with dot.
func (u *UploadedFile) Ext() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

// measuredSize prefers the real content length over the declared one.
func (u *UploadedFile) measuredSize() (int64, error) {
	if u.Content == nil {
		return u.Size, nil
	}
	n, err := u.Content.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("measure upload: %w", err)
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind upload: %w", err)
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Policy parsing
// -----------------------------------------------------------------------------

var sizeUnits = map[string]int64{
	"":   1,
	"b":  1,
	"k":  1 << 10,
	"kb": 1 << 10,
	"m":  1 << 20,
	"mb": 1 << 20,
	"g":  1 << 30,
	"gb": 1 << 30,
}

// ParseSize converts “2MB”, “500 KB”, or “1024” to bytes.
func ParseSize(s string) (int64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("size %q: empty", s)
	}
	i := 0
	for i < len(t) && (t[i] >= '0' && t[i] <= '9' || t[i] == '.') {
		i++
	}
	num, unit := t[:i], strings.TrimSpace(t[i:])
	if num == "" {
		return 0, fmt.Errorf("size %q: missing number", s)
	}
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("size %q: unknown unit %q", s, unit)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}
	return int64(f * float64(mult)), nil
}

// MatchAccept reports whether a file satisfies an accept list.  Entries are
// comma-separated MIME wildcards (“image/*”), exact MIME types, or extensions
// with or without a leading dot.  An empty list accepts everything.
func MatchAccept(accept, filename, mimeType string) bool {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return true
	}
	mimeType = strings.ToLower(mimeType)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	for _, tok := range strings.Split(accept, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		switch {
		case tok == "":
			continue
		case tok == "*/*" || tok == "*":
			return true
		case strings.HasSuffix(tok, "/*"):
			if strings.HasPrefix(mimeType, strings.TrimSuffix(tok, "*")) {
				return true
			}
		case strings.Contains(tok, "/"):
			if mimeType == tok {
				return true
			}
		default:
			if ext != "" && ext == strings.TrimPrefix(tok, ".") {
				return true
			}
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Storing
// -----------------------------------------------------------------------------

// StoreUpload checks u against the file element e and stores it under
// prefix/formID/.  Policy failures are *SecurityRejection; anything else is a
// storage error.
func StoreUpload(ctx context.Context, fs FileStore, prefix, formID, field string, e Element, u *UploadedFile, now time.Time) (StoredFile, error) {
	size, err := u.measuredSize()
	if err != nil {
		return StoredFile{}, err
	}
	if e.Properties.MaxSize != "" {
		limit, err := ParseSize(e.Properties.MaxSize)
		if err != nil {
			return StoredFile{}, &SecurityRejection{Kind: RejectUpload, Field: field, Reason: err.Error()}
		}
		if size > limit {
			return StoredFile{}, &SecurityRejection{
				Kind:   RejectUpload,
				Field:  field,
				Reason: fmt.Sprintf("size %s exceeds limit %s", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit))),
			}
		}
	}

	mt, err := u.MIME()
	if err != nil {
		return StoredFile{}, err
	}
	if !MatchAccept(e.Properties.Accept, u.Filename, mt) {
		return StoredFile{}, &SecurityRejection{
			Kind:   RejectUpload,
			Field:  field,
			Reason: fmt.Sprintf("type %s (%q) not in accept list %q", mt, u.Filename, e.Properties.Accept),
		}
	}

	name, err := storedName(u, mt, now)
	if err != nil {
		return StoredFile{}, err
	}
	dest := path.Join(prefix, formID, name)
	stored, err := fs.StoreFile(ctx, u, dest)
	if err != nil {
		return StoredFile{}, fmt.Errorf("store %s: %w", dest, err)
	}

	return StoredFile{
		OriginalName: u.Filename,
		StoredName:   name,
		Path:         stored,
		Size:         size,
		MIMEType:     mt,
		UploadedAt:   now.UTC(),
	}, nil
}

func storedName(u *UploadedFile, mt string, now time.Time) (string, error) {
	var rnd [6]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return "", fmt.Errorf("random suffix: %w", err)
	}
	ext := u.Ext()
	if ext == "" {
		if m := mimetype.Lookup(mt); m != nil {
			ext = m.Extension()
		}
	}
	return fmt.Sprintf("%s_%s%s", now.UTC().Format("20060102T150405"), hex.EncodeToString(rnd[:]), ext), nil
}
