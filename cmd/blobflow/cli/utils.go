package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/walrusagents/blobflow/pkg/blobkit"
)

// NormalizePath expands environment variables and a leading ~.
func NormalizePath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}

func processConfigPath(path string) string {
	path = NormalizePath(path)
	// check if path defines directory
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, defaultConfigFileName)
	}
	return filepath.Clean(path)
}

// parseTags turns repeated key=value flags into a tag map.
func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", p)
		}
		if _, dup := tags[k]; dup {
			return nil, fmt.Errorf("duplicate tag %q", k)
		}
		tags[k] = strings.TrimSpace(v)
	}
	if err := blobkit.ValidateTags(tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// payloadFromBytes picks the payload kind. "auto" treats .json files as
// JSON, other valid UTF-8 as text and everything else as binary.
func payloadFromBytes(name string, data []byte, kind string) (blobkit.Payload, error) {
	switch strings.ToLower(kind) {
	case "json":
		return blobkit.RawJSON(data), nil
	case "text":
		if !utf8.Valid(data) {
			return blobkit.Payload{}, fmt.Errorf("%s is not valid UTF-8 text", name)
		}
		return blobkit.Text(string(data)), nil
	case "binary":
		return blobkit.Binary(data), nil
	case "", "auto":
		switch {
		case strings.EqualFold(filepath.Ext(name), ".json"):
			return blobkit.RawJSON(data), nil
		case utf8.Valid(data):
			return blobkit.Text(string(data)), nil
		default:
			return blobkit.Binary(data), nil
		}
	default:
		return blobkit.Payload{}, fmt.Errorf("unknown payload kind %q (auto, json, text, binary)", kind)
	}
}
