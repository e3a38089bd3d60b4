package project_test

import (
	"context"
	"testing"

	"adforge/internal/project"
	"adforge/internal/stage"
	"adforge/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	created, err := store.Create(context.Background(), project.Seed{
		Title:       "Sneaker Drop",
		RetryBudget: 2,
		Settings:    map[string]string{stage.SettingTone: "playful"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Stage != stage.Created {
		t.Fatalf("stage = %s, want %s", created.Stage, stage.Created)
	}
	if created.GenerationEpoch != 0 {
		t.Fatalf("epoch = %d, want 0", created.GenerationEpoch)
	}

	fetched, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected project")
	}
	if fetched.Title != "Sneaker Drop" || fetched.Setting(stage.SettingTone) != "playful" {
		t.Fatalf("round trip mismatch: %+v", fetched)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatal("timestamps not persisted")
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.Create(context.Background(), project.Seed{Title: "  "}); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestGetByIDAbsent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	p, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil for absent project, got %+v", p)
	}
}

func TestListFiltersByStage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.NewProject(t, store, "A")
	testsupport.NewProject(t, store, "B")

	moved := a.Clone()
	moved.Stage = stage.Analyzing
	if ok, err := store.CASTransition(ctx, moved, stage.Created, 0); err != nil || !ok {
		t.Fatalf("CASTransition: ok=%t err=%v", ok, err)
	}

	analyzing, err := store.List(ctx, stage.Analyzing)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(analyzing) != 1 || analyzing[0].ID != a.ID {
		t.Fatalf("filtered list = %v", analyzing)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
}

func TestCASTransitionRejectsStaleStage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Race")

	first := p.Clone()
	first.Stage = stage.Analyzing
	if ok, err := store.CASTransition(ctx, first, stage.Created, 0); err != nil || !ok {
		t.Fatalf("first CAS: ok=%t err=%v", ok, err)
	}

	// A second writer still believing the project is at created must lose.
	second := p.Clone()
	second.Stage = stage.Analyzing
	ok, err := store.CASTransition(ctx, second, stage.Created, 0)
	if err != nil {
		t.Fatalf("second CAS: %v", err)
	}
	if ok {
		t.Fatal("stale CAS succeeded")
	}
}

func TestCASTransitionRejectsStaleEpoch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Race")

	bumped := p.Clone()
	bumped.GenerationEpoch = 1
	if ok, err := store.CASTransition(ctx, bumped, stage.Created, 0); err != nil || !ok {
		t.Fatalf("epoch bump: ok=%t err=%v", ok, err)
	}

	late := p.Clone()
	late.Stage = stage.Analyzing
	ok, err := store.CASTransition(ctx, late, stage.Created, 0)
	if err != nil {
		t.Fatalf("late CAS: %v", err)
	}
	if ok {
		t.Fatal("CAS with stale epoch succeeded")
	}
}

func TestUpdateSettingsCASRequiresStage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Settings")

	edited := p.Clone()
	edited.Settings = map[string]string{stage.SettingVoicePreset: "warm"}
	if ok, err := store.UpdateSettingsCAS(ctx, edited, stage.Created); err != nil || !ok {
		t.Fatalf("UpdateSettingsCAS: ok=%t err=%v", ok, err)
	}

	stale := p.Clone()
	stale.Settings = map[string]string{stage.SettingVoicePreset: "bright"}
	ok, err := store.UpdateSettingsCAS(ctx, stale, stage.Analyzing)
	if err != nil {
		t.Fatalf("stale UpdateSettingsCAS: %v", err)
	}
	if ok {
		t.Fatal("settings CAS succeeded against wrong stage")
	}

	fetched, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Setting(stage.SettingVoicePreset) != "warm" {
		t.Fatalf("setting = %q, want warm", fetched.Setting(stage.SettingVoicePreset))
	}
}

func TestUnitLifecycle(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Units")

	ids, err := store.SeedUnits(ctx, p.ID, stage.BrollGeneration, 0, 3)
	if err != nil {
		t.Fatalf("SeedUnits: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("seeded %d units, want 3", len(ids))
	}

	if err := store.UpsertUnit(ctx, project.Unit{
		ID:        ids[0],
		ProjectID: p.ID,
		Stage:     stage.BrollGeneration,
		State:     project.UnitCompleted,
	}); err != nil {
		t.Fatalf("UpsertUnit completed: %v", err)
	}
	if err := store.UpsertUnit(ctx, project.Unit{
		ID:        ids[1],
		ProjectID: p.ID,
		Stage:     stage.BrollGeneration,
		State:     project.UnitGenerating,
	}); err != nil {
		t.Fatalf("UpsertUnit generating: %v", err)
	}

	counts, err := store.UnitCounts(ctx, p.ID, stage.BrollGeneration, 0)
	if err != nil {
		t.Fatalf("UnitCounts: %v", err)
	}
	if counts.Total != 3 || counts.Completed != 1 || counts.Generating != 1 || counts.Failed != 0 {
		t.Fatalf("counts = %+v", counts)
	}
	if counts.Completed+counts.Generating+counts.Failed > counts.Total {
		t.Fatalf("state counts exceed total: %+v", counts)
	}
	if counts.StartedAt.IsZero() {
		t.Fatal("StartedAt not derived from earliest unit")
	}
}

func TestUnitCountsScopedToEpoch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Epochs")

	if _, err := store.SeedUnits(ctx, p.ID, stage.Directing, 0, 4); err != nil {
		t.Fatalf("SeedUnits epoch 0: %v", err)
	}
	if _, err := store.SeedUnits(ctx, p.ID, stage.Directing, 1, 2); err != nil {
		t.Fatalf("SeedUnits epoch 1: %v", err)
	}

	counts, err := store.UnitCounts(ctx, p.ID, stage.Directing, 1)
	if err != nil {
		t.Fatalf("UnitCounts: %v", err)
	}
	if counts.Total != 2 {
		t.Fatalf("epoch-scoped total = %d, want 2", counts.Total)
	}
}

func TestDeleteCascadesUnits(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	p := testsupport.NewProject(t, store, "Cascade")

	if _, err := store.SeedUnits(ctx, p.ID, stage.Editing, 0, 1); err != nil {
		t.Fatalf("SeedUnits: %v", err)
	}
	removed, err := store.Delete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove the row")
	}
	counts, err := store.UnitCounts(ctx, p.ID, stage.Editing, 0)
	if err != nil {
		t.Fatalf("UnitCounts: %v", err)
	}
	if counts.Total != 0 {
		t.Fatalf("units survived project delete: %+v", counts)
	}
}

func TestHealthSummary(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewProject(t, store, "Gate")
	b := testsupport.NewProject(t, store, "Working")

	moved := b.Clone()
	moved.Stage = stage.Scripting
	if ok, err := store.CASTransition(ctx, moved, stage.Created, 0); err != nil || !ok {
		t.Fatalf("CASTransition: ok=%t err=%v", ok, err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.AtGate != 1 || health.Processing != 1 {
		t.Fatalf("health = %+v", health)
	}
}
