package stage_test

import (
	"testing"

	"adforge/internal/stage"
)

func TestOrderIsStrictlyIncreasing(t *testing.T) {
	all := stage.All()
	if len(all) == 0 {
		t.Fatal("expected stages")
	}
	for i, s := range all {
		idx, ok := stage.OrderOf(s)
		if !ok {
			t.Fatalf("OrderOf(%s) not found", s)
		}
		if idx != i {
			t.Fatalf("OrderOf(%s) = %d, want %d", s, idx, i)
		}
	}
	if _, ok := stage.OrderOf(stage.Failed); ok {
		t.Fatal("failed should sit outside the stage order")
	}
}

func TestSuccessorWalksToCompleted(t *testing.T) {
	current := stage.Created
	steps := 0
	for {
		next, ok := stage.Successor(current)
		if !ok {
			break
		}
		currentIdx, _ := stage.OrderOf(current)
		nextIdx, _ := stage.OrderOf(next)
		if nextIdx != currentIdx+1 {
			t.Fatalf("Successor(%s) = %s, order jumped from %d to %d", current, next, currentIdx, nextIdx)
		}
		current = next
		steps++
		if steps > stage.Count() {
			t.Fatal("successor chain did not terminate")
		}
	}
	if current != stage.Completed {
		t.Fatalf("successor chain ended at %s, want %s", current, stage.Completed)
	}
}

func TestTerminalStagesHaveNoSuccessor(t *testing.T) {
	for _, s := range []stage.Stage{stage.Completed, stage.Failed} {
		if next, ok := stage.Successor(s); ok {
			t.Fatalf("Successor(%s) = %s, want none", s, next)
		}
	}
}

func TestRollbackTargetsPrecedeTheirStage(t *testing.T) {
	for _, s := range stage.All() {
		target, ok := stage.RollbackTarget(s)
		if stage.IsProcessing(s) != ok {
			t.Fatalf("RollbackTarget(%s): ok = %t, processing = %t", s, ok, stage.IsProcessing(s))
		}
		if !ok {
			continue
		}
		if !stage.IsReviewGate(target) {
			t.Fatalf("RollbackTarget(%s) = %s, not a review gate", s, target)
		}
		sIdx, _ := stage.OrderOf(s)
		tIdx, _ := stage.OrderOf(target)
		if tIdx >= sIdx {
			t.Fatalf("RollbackTarget(%s) = %s does not precede it", s, target)
		}
	}
}

func TestRollbackTargetTable(t *testing.T) {
	cases := []struct {
		from stage.Stage
		want stage.Stage
	}{
		{stage.Analyzing, stage.Created},
		{stage.Scripting, stage.AnalysisReview},
		{stage.BrollPlanning, stage.ScriptReview},
		{stage.BrollGeneration, stage.BrollReview},
		{stage.Casting, stage.InfluencerSelection},
		{stage.Directing, stage.CastingReview},
		{stage.Voiceover, stage.CastingReview},
		{stage.Editing, stage.AssetReview},
	}
	for _, tc := range cases {
		got, ok := stage.RollbackTarget(tc.from)
		if !ok || got != tc.want {
			t.Errorf("RollbackTarget(%s) = %s (ok=%t), want %s", tc.from, got, ok, tc.want)
		}
	}
}

func TestKinds(t *testing.T) {
	if !stage.IsReviewGate(stage.Created) {
		t.Error("created should halt as a review gate")
	}
	if !stage.IsTerminal(stage.Completed) || !stage.IsTerminal(stage.Failed) {
		t.Error("completed and failed should be terminal")
	}
	processing := 0
	for _, s := range stage.All() {
		if stage.IsProcessing(s) {
			processing++
		}
	}
	if processing != 8 {
		t.Errorf("processing stage count = %d, want 8", processing)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want stage.Stage
		ok   bool
	}{
		{"casting", stage.Casting, true},
		{" Casting_Review ", stage.CastingReview, true},
		{"failed", stage.Failed, true},
		{"", "", false},
		{"rendering", "", false},
	}
	for _, tc := range cases {
		got, ok := stage.Parse(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Parse(%q) = (%s, %t), want (%s, %t)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOwningStage(t *testing.T) {
	cases := []struct {
		key   string
		owner stage.Stage
	}{
		{stage.SettingTone, stage.Scripting},
		{stage.SettingVideoModel, stage.Directing},
		{stage.SettingVoicePreset, stage.Voiceover},
		{stage.SettingBrollPreset, stage.BrollPlanning},
	}
	for _, tc := range cases {
		owner, ok := stage.OwningStage(tc.key)
		if !ok || owner != tc.owner {
			t.Errorf("OwningStage(%s) = %s (ok=%t), want %s", tc.key, owner, ok, tc.owner)
		}
	}
	if _, ok := stage.OwningStage("brightness"); ok {
		t.Error("unknown setting should have no owner")
	}
}

func TestRegenerationCostCoversProcessingStages(t *testing.T) {
	for _, s := range stage.All() {
		cost := stage.RegenerationCostMinor(s)
		if stage.IsProcessing(s) && cost <= 0 {
			t.Errorf("RegenerationCostMinor(%s) = %d, want positive", s, cost)
		}
		if !stage.IsProcessing(s) && cost != 0 {
			t.Errorf("RegenerationCostMinor(%s) = %d, want 0 for non-processing", s, cost)
		}
	}
}

func TestExpectedUnits(t *testing.T) {
	for _, s := range stage.All() {
		units := stage.ExpectedUnits(s)
		if stage.IsProcessing(s) && units <= 0 {
			t.Errorf("ExpectedUnits(%s) = %d, want positive", s, units)
		}
		if !stage.IsProcessing(s) && units != 0 {
			t.Errorf("ExpectedUnits(%s) = %d, want 0", s, units)
		}
	}
}

func TestAutoRetryOnlyGenerationHeavyStages(t *testing.T) {
	want := map[stage.Stage]bool{
		stage.BrollGeneration: true,
		stage.Casting:         true,
		stage.Directing:       true,
		stage.Voiceover:       true,
	}
	for _, s := range stage.All() {
		if got := stage.AutoRetry(s); got != want[s] {
			t.Errorf("AutoRetry(%s) = %t, want %t", s, got, want[s])
		}
	}
}
