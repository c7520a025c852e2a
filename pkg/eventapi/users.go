// Package eventapi implements the remote event API: login, event submission
// and listing, backed by a pluggable event store and optional archival sinks.
package eventapi

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// SeedUser is one roster entry as provisioned, password still in the clear.
type SeedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
}

// User is a provisioned account with its password hashed.
type User struct {
	Username     string
	PasswordHash []byte
	Role         string
	FullName     string
}

// Roles recognized by the API.
const (
	RoleScout = "scout"
	RoleAdmin = "admin"
)

// UserStore holds the provisioned accounts. The roster is fixed at
// construction; passwords are bcrypt-hashed up front so the plaintext never
// outlives startup.
type UserStore struct {
	users  map[string]User
	logger zerolog.Logger
}

// NewUserStore builds a UserStore from a seed roster. Usernames are trimmed
// and de-duplicated; when a username appears twice, the admin entry wins.
func NewUserStore(seed []SeedUser, logger zerolog.Logger) (*UserStore, error) {
	merged := make(map[string]SeedUser, len(seed))
	for _, su := range seed {
		su.Username = strings.TrimSpace(su.Username)
		if su.Username == "" {
			continue
		}
		prev, ok := merged[su.Username]
		if ok && prev.Role == RoleAdmin && su.Role != RoleAdmin {
			continue
		}
		merged[su.Username] = su
	}

	users := make(map[string]User, len(merged))
	for name, su := range merged {
		hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(su.Password)), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for user %s: %w", name, err)
		}
		users[name] = User{
			Username:     name,
			PasswordHash: hash,
			Role:         su.Role,
			FullName:     su.FullName,
		}
	}

	logger.Info().Int("users", len(users)).Msg("User store initialized.")
	return &UserStore{
		users:  users,
		logger: logger.With().Str("component", "UserStore").Logger(),
	}, nil
}

// LoadRoster reads a seed roster from a JSON file.
func LoadRoster(path string) ([]SeedUser, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file %s: %w", path, err)
	}
	var seed []SeedUser
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse roster file %s: %w", path, err)
	}
	return seed, nil
}

// Authenticate verifies a username/password pair and returns the matching
// account. It returns false on any mismatch without distinguishing unknown
// users from wrong passwords.
func (s *UserStore) Authenticate(username, password string) (User, bool) {
	user, ok := s.users[strings.TrimSpace(username)]
	if !ok {
		return User{}, false
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(strings.TrimSpace(password))); err != nil {
		return User{}, false
	}
	return user, true
}

// Exists reports whether a username is provisioned.
func (s *UserStore) Exists(username string) bool {
	_, ok := s.users[strings.TrimSpace(username)]
	return ok
}

// Count returns the number of provisioned accounts.
func (s *UserStore) Count() int {
	return len(s.users)
}
