package blob

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// DefaultExtension is used when neither name, mime type nor content
	// suggest one.
	DefaultExtension = ".bin"

	maxCleanName = 50
)

var (
	unsafeChars = regexp.MustCompile(`[^\w\s-]`)
	separators  = regexp.MustCompile(`[-\s]+`)
	extPattern  = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)
)

// CleanName reduces an attachment name (without extension) to word
// characters joined by underscores, at most 50 characters long.
func CleanName(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(separators.ReplaceAllString(name, "_"), "_")
	if len(name) > maxCleanName {
		name = strings.TrimRight(name[:maxCleanName], "_")
	}
	if name == "" {
		return "file"
	}
	return name
}

// ObjectKey builds the storage key of an attachment:
// attachments/YYYY/MM/DD/<token>_att_<id>_<clean name><ext>.
func ObjectKey(now time.Time, token string, externalID int64, name, ext string) string {
	return fmt.Sprintf("attachments/%s/%s_att_%d_%s%s",
		now.UTC().Format("2006/01/02"), token, externalID, CleanName(name), ext)
}

// NewObjectKey is ObjectKey with a random token.
func NewObjectKey(now time.Time, externalID int64, name, ext string) string {
	return ObjectKey(now, uuid.NewString(), externalID, name, ext)
}

// DetectMime returns the declared mime type, or the one sniffed from data
// when nothing was declared.
func DetectMime(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// Extension picks a lower-case file extension from the file name, else the
// mime type, else the content, else DefaultExtension.
func Extension(filename, mimeType string, data []byte) string {
	if ext := strings.ToLower(filepath.Ext(filename)); extPattern.MatchString(ext) {
		return ext
	}
	if base, _, _ := strings.Cut(mimeType, ";"); strings.TrimSpace(base) != "" {
		if m := mimetype.Lookup(strings.TrimSpace(base)); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	if len(data) > 0 {
		if ext := mimetype.Detect(data).Extension(); ext != "" {
			return ext
		}
	}
	return DefaultExtension
}
