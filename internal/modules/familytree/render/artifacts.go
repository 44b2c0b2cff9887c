package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type CleanupPolicy string

const (
	// CleanupKeep leaves every artifact on disk.
	CleanupKeep CleanupPolicy = "keep"
	// CleanupIntermediate removes the tree-text and graph files once the
	// image exists, and every partial file on failure.
	CleanupIntermediate CleanupPolicy = "intermediate"
	// CleanupAll additionally removes the image when the caller releases
	// the result.
	CleanupAll CleanupPolicy = "all"
)

func ParseCleanupPolicy(s string) (CleanupPolicy, error) {
	switch p := CleanupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CleanupKeep, nil
	case CleanupKeep, CleanupIntermediate, CleanupAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cleanup policy %q", s)
	}
}

type NamingPolicy string

const (
	// NamingKeyed derives paths from the artifact key alone and serializes
	// renders per key.
	NamingKeyed NamingPolicy = "keyed"
	// NamingUnique appends a per-request suffix so renders never share paths.
	NamingUnique NamingPolicy = "unique"
)

func ParseNamingPolicy(s string) (NamingPolicy, error) {
	switch p := NamingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return NamingKeyed, nil
	case NamingKeyed, NamingUnique:
		return p, nil
	default:
		return "", fmt.Errorf("unknown naming policy %q", s)
	}
}

// Artifacts are the three files one render produces.
type Artifacts struct {
	Text  string
	Graph string
	Image string
}

var unsafeKeyRunes = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeKey maps an artifact key onto a file-name stem that cannot escape the
// work directory.
func SafeKey(key string) string {
	return unsafeKeyRunes.ReplaceAllString(strings.TrimSpace(key), "_")
}

func artifactsFor(dir, stem, format string) Artifacts {
	return Artifacts{
		Text:  filepath.Join(dir, stem+".txt"),
		Graph: filepath.Join(dir, stem+".dot"),
		Image: filepath.Join(dir, stem+"."+format),
	}
}

func removeFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
