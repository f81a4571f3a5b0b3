package phone

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const identityFile = "identity.yaml"

// identityDoc is the on-disk shape: room code to player id
type identityDoc struct {
	Rooms map[string]string `yaml:"rooms"`
}

// Identity remembers which player this device was in each room so a
// reloaded phone rejoins as the same player.
type Identity struct {
	path string
	mu   sync.Mutex
}

// DefaultIdentityPath is <user config dir>/partytrivia/identity.yaml
func DefaultIdentityPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find user config dir: %w", err)
	}
	return filepath.Join(dir, "partytrivia", identityFile), nil
}

func NewIdentity(path string) *Identity {
	return &Identity{path: path}
}

// PlayerID returns the id saved for roomCode
func (i *Identity) PlayerID(roomCode string) (string, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, err := i.load()
	if err != nil {
		return "", false, err
	}
	id, ok := doc.Rooms[normalizeCode(roomCode)]
	return id, ok, nil
}

// Remember saves playerID for roomCode
func (i *Identity) Remember(roomCode, playerID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, err := i.load()
	if err != nil {
		return err
	}
	doc.Rooms[normalizeCode(roomCode)] = playerID
	return i.save(doc)
}

// Forget drops the saved id for roomCode
func (i *Identity) Forget(roomCode string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, err := i.load()
	if err != nil {
		return err
	}
	delete(doc.Rooms, normalizeCode(roomCode))
	return i.save(doc)
}

func (i *Identity) load() (identityDoc, error) {
	doc := identityDoc{Rooms: map[string]string{}}
	data, err := os.ReadFile(i.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read identity file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse identity file: %w", err)
	}
	if doc.Rooms == nil {
		doc.Rooms = map[string]string{}
	}
	return doc, nil
}

func (i *Identity) save(doc identityDoc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode identity file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(i.path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	tmp := i.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	if err := os.Rename(tmp, i.path); err != nil {
		return fmt.Errorf("failed to replace identity file: %w", err)
	}
	return nil
}

func normalizeCode(roomCode string) string {
	return strings.ToUpper(strings.TrimSpace(roomCode))
}
