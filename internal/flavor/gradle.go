package flavor

import (
	"regexp"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

const (
	gradleProperties = "gradle.properties"
	gradleSettings   = "settings.gradle"
)

var (
	gradleVersionRe = regexp.MustCompile(`(?m)^([ \t]*version[ \t]*=[ \t]*)(\S+)[ \t]*$`)
	gradleNameRe    = regexp.MustCompile(`rootProject\.name\s*=\s*['"]([^'"]+)['"]`)
)

// Gradle builds with the wrapper and keeps its version in gradle.properties.
func Gradle() Flavor {
	return Flavor{
		Name:    "gradle",
		Build:   shellStep("./gradlew --no-daemon assemble"),
		Test:    shellStep("./gradlew --no-daemon test"),
		Publish: publishStep("", "build/libs/*.jar"),
		Reports: "build/test-results/test/*.xml",
		Version: Versioner{Read: readGradle, Bump: bumpGradle},
	}
}

func readGradle(files ci.FileStore) (Package, error) {
	raw, err := files.Read(gradleProperties)
	if err != nil {
		return Package{}, errors.WrapError(err, errors.CategoryConfig, "read gradle.properties").Build()
	}
	m := gradleVersionRe.FindSubmatch(raw)
	if m == nil {
		return Package{}, errors.ConfigError("gradle.properties has no version").Build()
	}
	pkg := Package{Version: string(m[2]), Manifest: gradleProperties}
	if files.Exists(gradleSettings) {
		if settings, err := files.Read(gradleSettings); err == nil {
			if n := gradleNameRe.FindSubmatch(settings); n != nil {
				pkg.Name = string(n[1])
			}
		}
	}
	return pkg, nil
}

func bumpGradle(files ci.FileStore, next string) (string, error) {
	raw, err := files.Read(gradleProperties)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "read gradle.properties").Build()
	}
	if !gradleVersionRe.Match(raw) {
		return "", errors.ConfigError("gradle.properties has no version").Build()
	}
	out := gradleVersionRe.ReplaceAll(raw, []byte("${1}"+next))
	if err := files.Write(gradleProperties, out); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "write gradle.properties").Build()
	}
	return gradleProperties, nil
}
