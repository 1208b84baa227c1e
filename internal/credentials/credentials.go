// Package credentials reads and writes the JSON file holding Instapaper API
// keys and login details.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultPath is the credentials file used when no --auth flag is given.
const DefaultPath = "auth.json"

// Keys stored in the credentials file.
const (
	KeyConsumerID     = "instapaper_consumer_id"
	KeyConsumerSecret = "instapaper_consumer_secret"
	KeyEmail          = "instapaper_email"
	KeyPassword       = "instapaper_password"
)

// RequiredKeys lists the keys Load insists on.
var RequiredKeys = []string{KeyConsumerID, KeyConsumerSecret, KeyEmail, KeyPassword}

// ErrMissingCredentials is returned by Load when the file is absent or lacks
// one of RequiredKeys.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials holds the OAuth consumer pair and the account login.
type Credentials struct {
	ConsumerID     string
	ConsumerSecret string
	Email          string
	Password       string
}

// Fields returns c keyed the way Save stores it.
func (c *Credentials) Fields() map[string]any {
	return map[string]any{
		KeyConsumerID:     c.ConsumerID,
		KeyConsumerSecret: c.ConsumerSecret,
		KeyEmail:          c.Email,
		KeyPassword:       c.Password,
	}
}

// Load reads the credentials file at path.
//
// Any JSON object is accepted as long as the four required keys are present
// with string values. Extra keys are ignored.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrMissingCredentials, path)
		}
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object: %v", ErrMissingCredentials, path, err)
	}

	values := make(map[string]string, len(RequiredKeys))
	for _, key := range RequiredKeys {
		v, ok := raw[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no %s", ErrMissingCredentials, path, key)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s is not a string", ErrMissingCredentials, key, path)
		}
		values[key] = s
	}

	return &Credentials{
		ConsumerID:     values[KeyConsumerID],
		ConsumerSecret: values[KeyConsumerSecret],
		Email:          values[KeyEmail],
		Password:       values[KeyPassword],
	}, nil
}

// Save merges fields into the JSON object stored at path and writes it back.
//
// Keys in fields replace keys of the same name; every other key already in
// the file is kept. A missing file starts as an empty object. The result is
// indented with four spaces and ends with a newline.
func Save(path string, fields map[string]any) error {
	data := make(map[string]any)

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(existing, &data); err != nil {
			return fmt.Errorf("failed to parse credentials file %s: %w", path, err)
		}
		if data == nil {
			data = make(map[string]any)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	for k, v := range fields {
		data[k] = v
	}

	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	out = append(out, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}

	// The file holds a password.
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file %s: %w", path, err)
	}

	return nil
}
