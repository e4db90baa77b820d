package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/planner/core/model"
)

// LoadSnapshotFile reads a snapshot from a JSON or YAML file.
func LoadSnapshotFile(path string) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeSnapshot(f, ext)
}

// DecodeSnapshot reads a snapshot in the given format ("yaml" or "json").
// Durations are Go duration strings in YAML and nanoseconds in JSON.
func DecodeSnapshot(r io.Reader, format string) (model.Snapshot, error) {
	var s model.Snapshot
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&s); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unsupported snapshot format: %s", format)
	}
	return s, s.Validate()
}
