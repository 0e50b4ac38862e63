package flavor

import (
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// DefaultVersionFile holds the version for generic projects.
const DefaultVersionFile = "VERSION"

// Generic builds with make and keeps its version in a plain text file.
func Generic(versionFile string) Flavor {
	if versionFile == "" {
		versionFile = DefaultVersionFile
	}
	return Flavor{
		Name:    "generic",
		Build:   shellStep("make build"),
		Test:    shellStep("make test"),
		Publish: publishStep("", "dist/*"),
		Reports: "build/test-results/*.xml",
		Version: Versioner{
			Read: func(files ci.FileStore) (Package, error) {
				raw, err := files.Read(versionFile)
				if err != nil {
					return Package{}, errors.WrapError(err, errors.CategoryConfig, "read version file").
						WithContext("path", versionFile).Build()
				}
				v := strings.TrimSpace(string(raw))
				if v == "" {
					return Package{}, errors.ConfigError("version file is empty").
						WithContext("path", versionFile).Build()
				}
				return Package{Version: v, Manifest: versionFile}, nil
			},
			Bump: func(files ci.FileStore, next string) (string, error) {
				if err := files.Write(versionFile, []byte(next+"\n")); err != nil {
					return "", errors.WrapError(err, errors.CategoryFileSystem, "write version file").Build()
				}
				return versionFile, nil
			},
		},
	}
}
