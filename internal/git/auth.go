package git

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
)

// Auth describes how to authenticate against the remote.
type Auth struct {
	Type     string `yaml:"type" toml:"type"` // none, ssh, token, basic
	Username string `yaml:"username,omitempty" toml:"username"`
	Password string `yaml:"password,omitempty" toml:"password"`
	Token    string `yaml:"token,omitempty" toml:"token"`
	KeyPath  string `yaml:"key_path,omitempty" toml:"key_path"`
}

// Method converts the configuration into a go-git auth method. A nil method
// means anonymous access.
func (a *Auth) Method() (transport.AuthMethod, error) {
	if a == nil {
		return nil, nil
	}
	switch a.Type {
	case "none", "":
		return nil, nil

	case "ssh":
		keyPath := a.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, a.Password)
		if err != nil {
			return nil, errors.ConfigError("failed to load SSH key").
				WithCause(err).
				WithContext("key_path", keyPath).
				Build()
		}
		return keys, nil

	case "token":
		if a.Token == "" {
			return nil, errors.ConfigError("token authentication requires a token").Build()
		}
		user := a.Username
		if user == "" {
			user = "token"
		}
		return &http.BasicAuth{Username: user, Password: a.Token}, nil

	case "basic":
		if a.Username == "" || a.Password == "" {
			return nil, errors.ConfigError("basic authentication requires username and password").Build()
		}
		return &http.BasicAuth{Username: a.Username, Password: a.Password}, nil

	default:
		return nil, errors.ConfigError("unsupported authentication type").
			WithContext("type", a.Type).
			Build()
	}
}
