package publish

import (
	"path"
	"regexp"
	"strings"
)

var compoundExts = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst"}

// splitExt separates the extension, recognizing common compound archive extensions.
func splitExt(base string) (string, string) {
	lower := strings.ToLower(base)
	for _, ext := range compoundExts {
		if strings.HasSuffix(lower, ext) && len(base) > len(ext) {
			return base[:len(base)-len(ext)], base[len(base)-len(ext):]
		}
	}
	ext := path.Ext(base)
	if ext == base {
		return base, ""
	}
	return strings.TrimSuffix(base, ext), ext
}

// FileMacros derives filename and fileext for an artifact. A trailing
// "-{baseVersion}" suffix, optionally prefixed with "v" and followed by a
// prerelease, is stripped so republishing does not append the version twice.
func FileMacros(file, baseVersion string) Macros {
	name, ext := splitExt(path.Base(strings.ReplaceAll(file, "\\", "/")))
	if baseVersion != "" {
		suffix := regexp.MustCompile(`[-_.]v?` + regexp.QuoteMeta(baseVersion) + `(-[0-9A-Za-z.-]+)?$`)
		if loc := suffix.FindStringIndex(name); loc != nil && loc[0] > 0 {
			name = name[:loc[0]]
		}
	}
	return Macros{"filename": name, "fileext": ext}
}
