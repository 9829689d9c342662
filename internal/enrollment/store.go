package enrollment

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// UsersFile is the name registry inside the enrollment directory.
const UsersFile = "users.json"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Clusters is the k-means partition of a user's raw vectors.
// Labels[i] is the centroid index of Raw[i].
type Clusters struct {
	Centroids [][]float32
	Labels    []int
}

// UserData is the per-user enrollment state persisted as face_{id}.gob.
type UserData struct {
	Raw      [][]float32
	Clusters *Clusters
}

type userEntry struct {
	Name string `json:"name"`
}

func userFile(userID string) string {
	return "face_" + userID + ".gob"
}

// ValidUserID reports whether id can be used as a user ID.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func loadUsers(dir string, log *slog.Logger) (map[string]*UserData, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading enrollment directory: %w", err)
	}

	users := make(map[string]*UserData)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "face_") || !strings.HasSuffix(name, ".gob") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "face_"), ".gob")
		if !ValidUserID(id) {
			log.Warn("skipping enrollment file with invalid user id", "file", name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // name comes from the directory listing
		if err != nil {
			log.Warn("failed to read enrollment file", "file", name, "error", err)
			continue
		}
		var ud UserData
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ud); err != nil {
			log.Warn("failed to decode enrollment file", "file", name, "error", err)
			continue
		}
		if ud.Clusters != nil && len(ud.Clusters.Labels) != len(ud.Raw) {
			log.Warn("dropping stale clusters", "user_id", id)
			ud.Clusters = nil
		}
		users[id] = &ud
	}
	return users, nil
}

func saveUser(dir, userID string, ud *UserData) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ud); err != nil {
		return fmt.Errorf("encoding user %s: %w", userID, err)
	}
	return storage.WriteFileAtomic(dir, userFile(userID), buf.Bytes())
}

func loadNames(dir string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, UsersFile)) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", UsersFile, err)
	}
	var raw map[string]userEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", UsersFile, err)
	}
	names := make(map[string]string, len(raw))
	for id, entry := range raw {
		names[id] = entry.Name
	}
	return names, nil
}

func saveNames(dir string, names map[string]string) error {
	raw := make(map[string]userEntry, len(names))
	for id, name := range names {
		raw[id] = userEntry{Name: name}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", UsersFile, err)
	}
	return storage.WriteFileAtomic(dir, UsersFile, data)
}
