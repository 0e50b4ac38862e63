package publish

import (
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/ci"
)

// Default templates for artifact paths.
const (
	DefaultPathTemplate = "{repository}/{package}/{publishversion}/"
	DefaultFileTemplate = "{filename}-{publishversion}{fileext}"
)

// Formatter turns macro templates into repository targets.
type Formatter struct {
	PathTemplate string
	FileTemplate string
}

// NewFormatter returns a formatter with the default templates.
func NewFormatter() *Formatter {
	return &Formatter{PathTemplate: DefaultPathTemplate, FileTemplate: DefaultFileTemplate}
}

// TargetPath expands the directory template. The result always ends in "/".
func (f *Formatter) TargetPath(macros Macros) string {
	tmpl := f.PathTemplate
	if tmpl == "" {
		tmpl = DefaultPathTemplate
	}
	p := Expand(tmpl, macros)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Target expands the full target for one local file.
func (f *Formatter) Target(file, baseVersion string, macros Macros) string {
	tmpl := f.FileTemplate
	if tmpl == "" {
		tmpl = DefaultFileTemplate
	}
	m := macros.Merge(FileMacros(file, baseVersion))
	return f.TargetPath(m) + Expand(tmpl, m)
}

// UploadSpec maps every local file to its expanded target.
func (f *Formatter) UploadSpec(files []string, baseVersion string, macros Macros) ci.UploadSpec {
	spec := ci.UploadSpec{Files: make([]ci.UploadFile, 0, len(files))}
	for _, file := range files {
		spec.Files = append(spec.Files, ci.UploadFile{Pattern: file, Target: f.Target(file, baseVersion, macros)})
	}
	return spec
}
