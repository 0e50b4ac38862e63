package flavor

import (
	"bytes"
	"encoding/json"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

const packageJSON = "package.json"

// NodeJS builds with npm and reads package.json.
func NodeJS() Flavor {
	return Flavor{
		Name:    "nodejs",
		Build:   shellStep("npm ci && npm run build --if-present"),
		Test:    shellStep("npm test"),
		Publish: publishStep("npm pack", "*.tgz"),
		Reports: "test-results/*.xml",
		Version: Versioner{Read: readPackageJSON, Bump: bumpPackageJSON},
	}
}

func readPackageJSON(files ci.FileStore) (Package, error) {
	raw, err := files.Read(packageJSON)
	if err != nil {
		return Package{}, errors.WrapError(err, errors.CategoryConfig, "read package.json").Build()
	}
	var doc struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Package{}, errors.WrapError(err, errors.CategoryConfig, "parse package.json").Build()
	}
	if doc.Version == "" {
		return Package{}, errors.ConfigError("package.json has no version").Build()
	}
	return Package{Name: doc.Name, Version: doc.Version, Manifest: packageJSON}, nil
}

// bumpPackageJSON rewrites the top-level version field in place so the rest of
// the file keeps its formatting.
func bumpPackageJSON(files ci.FileStore, next string) (string, error) {
	raw, err := files.Read(packageJSON)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "read package.json").Build()
	}
	start, end, err := topLevelVersion(raw)
	if err != nil {
		return "", err
	}
	quoted, err := json.Marshal(next)
	if err != nil {
		return "", errors.InternalError("encode version").WithCause(err).Build()
	}
	out := make([]byte, 0, len(raw)+len(quoted))
	out = append(out, raw[:start]...)
	out = append(out, quoted...)
	out = append(out, raw[end:]...)
	if err := files.Write(packageJSON, out); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "write package.json").Build()
	}
	return packageJSON, nil
}

// topLevelVersion returns the byte range of the quoted top-level "version"
// value. Keys of nested objects are skipped.
func topLevelVersion(raw []byte) (int, int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return 0, 0, errors.ConfigError("package.json is not a JSON object").WithCause(err).Build()
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, errors.WrapError(err, errors.CategoryConfig, "parse package.json").Build()
		}
		if key, _ := tok.(string); key != "version" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return 0, 0, errors.WrapError(err, errors.CategoryConfig, "parse package.json").Build()
			}
			continue
		}
		from := dec.InputOffset()
		var v string
		if err := dec.Decode(&v); err != nil {
			return 0, 0, errors.WrapError(err, errors.CategoryConfig, "package.json version is not a string").Build()
		}
		end := int(dec.InputOffset())
		quote := bytes.IndexByte(raw[from:end], '"')
		if quote < 0 {
			break
		}
		return int(from) + quote, end, nil
	}
	return 0, 0, errors.ConfigError("package.json has no version").Build()
}
