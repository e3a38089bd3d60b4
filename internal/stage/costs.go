package stage

// Per-stage generation economics. Costs are currency minor units (cents) per
// generated unit; expected units are what a full run of the stage dispatches.
// The impact analyzer multiplies the two to estimate regeneration cost, so
// these values are deliberately static rather than derived from live pricing.

var unitCostMinor = map[Stage]int64{
	Analyzing:       5,
	Scripting:       12,
	BrollPlanning:   8,
	BrollGeneration: 120,
	Casting:         45,
	Directing:       350,
	Voiceover:       60,
	Editing:         90,
}

var expectedUnits = map[Stage]int{
	Analyzing:       1,
	Scripting:       1,
	BrollPlanning:   1,
	BrollGeneration: 6,
	Casting:         4,
	Directing:       4,
	Voiceover:       1,
	Editing:         1,
}

// UnitCostMinor returns the static per-unit generation cost for a stage.
// Review gates and terminals cost nothing.
func UnitCostMinor(s Stage) int64 {
	return unitCostMinor[s]
}

// ExpectedUnits returns how many units of paid work a full run of the stage
// dispatches. Zero for stages that dispatch none.
func ExpectedUnits(s Stage) int {
	return expectedUnits[s]
}

// RegenerationCostMinor estimates the cost of rerunning a stage from scratch.
func RegenerationCostMinor(s Stage) int64 {
	return unitCostMinor[s] * int64(expectedUnits[s])
}

// Setting keys understood by the settings bag. Global keys may be changed at
// any review gate; stage-owned keys lock once their owning stage has run.
const (
	SettingTone        = "tone"
	SettingVideoModel  = "video_model"
	SettingVoicePreset = "voice_preset"
	SettingBrollPreset = "broll_preset"
)

var settingOwners = map[string]Stage{
	SettingTone:        Scripting,
	SettingVideoModel:  Directing,
	SettingVoicePreset: Voiceover,
	SettingBrollPreset: BrollPlanning,
}

// OwningStage returns the stage whose execution consumes the given setting
// key. ok=false marks global settings with no owning stage.
func OwningStage(key string) (Stage, bool) {
	owner, ok := settingOwners[key]
	return owner, ok
}

// KnownSetting reports whether the key belongs to the stage-owned settings
// vocabulary.
func KnownSetting(key string) bool {
	_, ok := settingOwners[key]
	return ok
}
