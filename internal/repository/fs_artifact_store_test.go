package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"StockCast/internal/domain/models"
)

func testArtifact(region string, version int64) *models.ModelArtifact {
	return &models.ModelArtifact{
		Region:  region,
		Version: version,
		Components: []models.ComponentModel{
			{Name: "gbt", Weight: 0.5, Params: json.RawMessage(`{"base":0.1}`)},
		},
		FeatureSchema: []string{"a", "b"},
		TrainedAt:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		SampleCount:   100,
		Profile:       "standard",
	}
}

func TestFSArtifactSaveLoadLatest(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for v := int64(1); v <= 3; v++ {
		if err := store.Save(ctx, testArtifact("KR", v)); err != nil {
			t.Fatalf("save v%d: %v", v, err)
		}
	}

	latest, err := store.Latest(ctx, "KR")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 3 {
		t.Fatalf("expected latest version 3, got %d", latest.Version)
	}

	loaded, err := store.Load(ctx, "KR", 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Version != 2 || loaded.FeatureSchema[1] != "b" {
		t.Fatalf("loaded artifact corrupted: %+v", loaded)
	}
}

func TestFSArtifactImmutable(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, testArtifact("KR", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, testArtifact("KR", 1)); err == nil {
		t.Fatalf("overwriting an existing version must fail")
	}
}

func TestFSArtifactMissingRegion(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Latest(context.Background(), "XX"); !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	vs, err := store.Versions(context.Background(), "XX")
	if err != nil || len(vs) != 0 {
		t.Fatalf("expected no versions, got %v (%v)", vs, err)
	}
}
