package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"StockCast/internal/domain/models"
)

// FSArtifactStore persists model artifacts as JSON files under
// <dir>/<region>/v<version>.json. Files are written to a temp path and
// renamed so a crashed write never leaves a partial artifact visible.
type FSArtifactStore struct {
	dir string
}

func NewFSArtifactStore(dir string) (*FSArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FSArtifactStore{dir: dir}, nil
}

func (s *FSArtifactStore) path(region string, version int64) string {
	return filepath.Join(s.dir, region, fmt.Sprintf("v%d.json", version))
}

func (s *FSArtifactStore) Save(_ context.Context, a *models.ModelArtifact) error {
	regionDir := filepath.Join(s.dir, a.Region)
	if err := os.MkdirAll(regionDir, 0o755); err != nil {
		return fmt.Errorf("artifact region dir: %w", err)
	}

	final := s.path(a.Region, a.Version)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("artifact %s v%d already exists", a.Region, a.Version)
	}

	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (s *FSArtifactStore) Load(_ context.Context, region string, version int64) (*models.ModelArtifact, error) {
	b, err := os.ReadFile(s.path(region, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrModelUnavailable
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a models.ModelArtifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &a, nil
}

func (s *FSArtifactStore) Latest(ctx context.Context, region string) (*models.ModelArtifact, error) {
	versions, err := s.Versions(ctx, region)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, models.ErrModelUnavailable
	}
	return s.Load(ctx, region, versions[len(versions)-1])
}

func (s *FSArtifactStore) Versions(_ context.Context, region string) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, region))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	var versions []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json"), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
