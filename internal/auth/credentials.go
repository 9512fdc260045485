package auth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"readingnook/internal/platform/crypto"
)

// Authenticator decides whether a username and password may edit the library.
type Authenticator interface {
	CheckCredentials(username, password string) bool
}

type credentialsFile struct {
	Users []struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"users"`
}

// StaticCredentials is an allow-list of editors. Stored passwords are bcrypt
// hashes or literals.
type StaticCredentials struct {
	users map[string]string
}

func NewStaticCredentials(users map[string]string) *StaticCredentials {
	c := &StaticCredentials{users: make(map[string]string, len(users))}
	for name, pass := range users {
		c.users[strings.TrimSpace(name)] = pass
	}
	return c
}

// LoadCredentials reads a YAML allow-list of the form
//
//	users:
//	  - username: reader
//	    password: $2a$10$...
func LoadCredentials(path string) (*StaticCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return ParseCredentials(data)
}

func ParseCredentials(data []byte) (*StaticCredentials, error) {
	var f credentialsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	users := make(map[string]string, len(f.Users))
	for i, u := range f.Users {
		if strings.TrimSpace(u.Username) == "" || u.Password == "" {
			return nil, fmt.Errorf("parse credentials: entry %d needs username and password", i)
		}
		users[u.Username] = u.Password
	}
	return NewStaticCredentials(users), nil
}

func (c *StaticCredentials) CheckCredentials(username, password string) bool {
	stored, ok := c.users[strings.TrimSpace(username)]
	if !ok {
		// Burn comparable time for unknown users.
		crypto.MatchPassword("", password)
		return false
	}
	return crypto.MatchPassword(stored, password)
}

func (c *StaticCredentials) Len() int { return len(c.users) }
