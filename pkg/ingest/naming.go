package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

// RawTablePrefix marks tables loaded straight from a data file.
const RawTablePrefix = "raw_"

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// SafeName replaces every character that is not a letter, digit or
// underscore with an underscore.
func SafeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// TableNameForFile derives the storage table name from a data file path:
// "raw_" followed by the sanitized basename without its extension.
func TableNameForFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return RawTablePrefix + SafeName(base)
}
