package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCredentialsNotFound is returned when no credentials are stored
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrInvalidCredentials is returned for malformed credential values
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// requiredKeys are the auth-file keys the fetcher cannot work without
var requiredKeys = []string{"url", "authorization", "cookie", "referer", "user_agent"}

// optionalKeys identify the requesting client to the remote API
var optionalKeys = []string{"oai_client_version", "oai_device_id", "oai_language"}

// Credentials carries everything needed to authenticate against the
// remote library API. It is an explicit value injected into the fetcher
// and downloader, scoped to one run.
type Credentials struct {
	URL           string    `json:"url"`
	Authorization string    `json:"authorization"`
	Cookie        string    `json:"cookie"`
	Referer       string    `json:"referer"`
	UserAgent     string    `json:"user_agent"`
	ClientVersion string    `json:"oai_client_version,omitempty"`
	DeviceID      string    `json:"oai_device_id,omitempty"`
	Language      string    `json:"oai_language,omitempty"`
	LastModified  time.Time `json:"last_modified,omitempty"`
}

// LoadFile reads key=value lines from an auth file. Lines without '='
// and whitespace-only lines are ignored.
func LoadFile(path string) (*Credentials, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, path)
		}
		return nil, fmt.Errorf("failed to open auth file: %w", err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, "=") {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}

	return fromMap(values), nil
}

// SaveFile writes the credentials back in the key=value format
func (c *Credentials) SaveFile(path string) error {
	var b strings.Builder
	m := c.toMap()
	keys := append(append([]string{}, requiredKeys...), optionalKeys...)
	for _, key := range keys {
		if m[key] != "" {
			fmt.Fprintf(&b, "%s=%s\n", key, m[key])
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}

// Validate reports the missing required keys, if any
func (c *Credentials) Validate() error {
	m := c.toMap()
	var missing []string
	for _, key := range requiredKeys {
		if m[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing required keys: %s",
			ErrInvalidCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Headers returns the HTTP headers the remote API expects
func (c *Credentials) Headers() map[string]string {
	headers := map[string]string{
		"Authorization": c.Authorization,
		"Cookie":        c.Cookie,
		"User-Agent":    c.UserAgent,
		"Accept":        "application/json",
		"Referer":       c.Referer,
	}
	if c.ClientVersion != "" {
		headers["oai-client-version"] = c.ClientVersion
	}
	if c.DeviceID != "" {
		headers["oai-device-id"] = c.DeviceID
	}
	if c.Language != "" {
		headers["oai-language"] = c.Language
	}
	return headers
}

func fromMap(values map[string]string) *Credentials {
	return &Credentials{
		URL:           values["url"],
		Authorization: values["authorization"],
		Cookie:        values["cookie"],
		Referer:       values["referer"],
		UserAgent:     values["user_agent"],
		ClientVersion: values["oai_client_version"],
		DeviceID:      values["oai_device_id"],
		Language:      values["oai_language"],
	}
}

func (c *Credentials) toMap() map[string]string {
	return map[string]string{
		"url":                c.URL,
		"authorization":      c.Authorization,
		"cookie":             c.Cookie,
		"referer":            c.Referer,
		"user_agent":         c.UserAgent,
		"oai_client_version": c.ClientVersion,
		"oai_device_id":      c.DeviceID,
		"oai_language":       c.Language,
	}
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials under a profile name
	Store(name string, creds *Credentials) error

	// Retrieve gets credentials for a profile
	Retrieve(name string) (*Credentials, error)

	// Delete removes credentials for a profile
	Delete(name string) error

	// Exists checks if credentials exist for a profile
	Exists(name string) bool
}

// Manager resolves credentials across backends: the plain auth file first
// (the contract shared with the remote-API collaborator), then the system
// keyring, then the encrypted file fallback.
type Manager struct {
	authFile string
	stores   []CredentialStore
}

// NewManager creates a credential manager rooted at the given auth file
func NewManager(authFile string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		encPath := configDir + "/imgarc/credentials.enc"
		if encryptedStore, err := NewEncryptedFileStore(encPath); err == nil {
			stores = append(stores, encryptedStore)
		}
	}

	return &Manager{authFile: authFile, stores: stores}, nil
}

// Resolve returns usable credentials: the auth file when present and
// valid, otherwise the first backend holding the named profile.
func (m *Manager) Resolve(profile string) (*Credentials, error) {
	creds, err := LoadFile(m.authFile)
	if err == nil {
		if verr := creds.Validate(); verr == nil {
			return creds, nil
		} else {
			err = verr
		}
	}

	for _, store := range m.stores {
		if stored, serr := store.Retrieve(profile); serr == nil && stored != nil {
			if stored.Validate() == nil {
				return stored, nil
			}
		}
	}

	return nil, fmt.Errorf("no usable credentials: %w", err)
}

// Store persists credentials to the auth file and all available backends
func (m *Manager) Store(profile string, creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	creds.LastModified = time.Now()

	if err := creds.SaveFile(m.authFile); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	for _, store := range m.stores {
		// Backends are best-effort mirrors of the auth file
		_ = store.Store(profile, creds)
	}
	return nil
}

// Delete removes stored credentials from every backend and the auth file
func (m *Manager) Delete(profile string) error {
	var lastErr error
	if err := os.Remove(m.authFile); err != nil && !os.IsNotExist(err) {
		lastErr = err
	}
	for _, store := range m.stores {
		if err := store.Delete(profile); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			lastErr = err
		}
	}
	return lastErr
}

// AuthFile returns the path of the managed auth file
func (m *Manager) AuthFile() string {
	return m.authFile
}
