package garmin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// Token store layout: a directory holding one JSON file per token. The
// directory is the durable artifact; everything else derives from it.
const (
	oauth1FileName = "oauth1_token.json"
	oauth2FileName = "oauth2_token.json"

	tokenFilePerms = 0o600
	tokenDirPerms  = 0o700
)

// LoadTokens reads the token pair from dir into the client without any
// network traffic. Returns ErrNoTokens when the store is missing or
// incomplete; a present-but-corrupt file is its own error.
func (c *Client) LoadTokens(dir string) error {
	var o1 OAuth1Token
	if err := readTokenFile(filepath.Join(dir, oauth1FileName), &o1); err != nil {
		return err
	}

	var o2 oauth2.Token
	if err := readTokenFile(filepath.Join(dir, oauth2FileName), &o2); err != nil {
		return err
	}

	if o1.Token == "" || o1.Secret == "" {
		return fmt.Errorf("%w: %s is incomplete", ErrNoTokens, oauth1FileName)
	}

	c.mu.Lock()
	c.oauth1 = &o1
	c.oauth2 = &o2
	c.mu.Unlock()
	return nil
}

// DumpTokens persists the current token pair to dir, creating it with
// owner-only permissions. Writes are atomic so a crash cannot leave a
// truncated token file behind.
func (c *Client) DumpTokens(dir string) error {
	c.mu.Lock()
	o1, o2 := c.oauth1, c.oauth2
	c.mu.Unlock()

	if o1 == nil || o2 == nil {
		return ErrNoTokens
	}

	if err := os.MkdirAll(dir, tokenDirPerms); err != nil {
		return fmt.Errorf("garmin: creating token store %s: %w", dir, err)
	}

	if err := writeTokenFile(filepath.Join(dir, oauth1FileName), o1); err != nil {
		return err
	}
	return writeTokenFile(filepath.Join(dir, oauth2FileName), o2)
}

// RemoveTokens deletes the token files from dir, reporting whether any were
// present. Other files in the directory are left alone.
func RemoveTokens(dir string) (bool, error) {
	removed := false
	for _, name := range []string{oauth1FileName, oauth2FileName} {
		err := os.Remove(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("garmin: removing %s: %w", name, err)
		}
		removed = true
	}
	return removed, nil
}

func readTokenFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNoTokens, path)
	}
	if err != nil {
		return fmt.Errorf("garmin: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("garmin: decoding %s: %w", path, err)
	}
	return nil
}

// writeTokenFile writes atomically: temp file in the same directory, fsync,
// then rename. Same directory guarantees same filesystem for rename(2).
func writeTokenFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("garmin: encoding %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("garmin: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, tokenFilePerms); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("garmin: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("garmin: writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("garmin: syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("garmin: closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("garmin: renaming %s: %w", path, err)
	}

	success = true
	return nil
}
