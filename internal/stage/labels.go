package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelOverrides = map[Stage]string{
	Created:             "Awaiting Start",
	Analyzing:           "Analyzing Product",
	AnalysisReview:      "Analysis Review",
	Scripting:           "Writing Script",
	ScriptReview:        "Script Review",
	BrollPlanning:       "Planning B-Roll",
	BrollReview:         "B-Roll Review",
	BrollGeneration:     "Generating B-Roll",
	InfluencerSelection: "Influencer Selection",
	Casting:             "Casting Keyframes",
	CastingReview:       "Casting Review",
	Directing:           "Directing Video",
	Voiceover:           "Recording Voiceover",
	AssetReview:         "Asset Review",
	Editing:             "Editing",
}

var titleCaser = cases.Title(language.English)

// Label returns the human-readable step label shown to operators.
func Label(s Stage) string {
	if label, ok := labelOverrides[s]; ok {
		return label
	}
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}
