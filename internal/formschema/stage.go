package formschema

import "strings"

// Stage is a named point in an application's lifecycle. Stages are plain
// strings so new ones can arrive through configuration data; only stages in
// the canonical allow-list take part in stage-gated requirements.
type Stage string

const (
	StagePredraft  Stage = "predraft"
	StageDraft     Stage = "draft"
	StageSubmitted Stage = "submitted"
	StageReview    Stage = "review"
	StageApproval  Stage = "approval"
	StageReturned  Stage = "returned"
	StageRejected  Stage = "rejected"
	StageCompleted Stage = "completed"
	StagePaid      Stage = "paid"
)

// canonicalStages is the ordered allow-list used for gating and for the
// "required at" hint.
var canonicalStages = []Stage{
	StagePredraft,
	StageDraft,
	StageSubmitted,
	StageReview,
	StageApproval,
	StageReturned,
	StageRejected,
	StageCompleted,
	StagePaid,
}

var stageAliases = map[string]Stage{
	"under_review": StageReview,
}

// CanonicalStages returns a copy of the ordered stage vocabulary.
func CanonicalStages() []Stage {
	out := make([]Stage, len(canonicalStages))
	copy(out, canonicalStages)
	return out
}

// ParseStage normalizes case, whitespace and known aliases. The result may
// still be unknown; callers check Known.
func ParseStage(raw string) Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := stageAliases[s]; ok {
		return alias
	}
	return Stage(s)
}

// Index returns the stage position in canonical order, or -1 if unknown.
func (s Stage) Index() int {
	normalized := ParseStage(string(s))
	for i, c := range canonicalStages {
		if c == normalized {
			return i
		}
	}
	return -1
}

// Known reports whether the stage is part of the allow-list.
func (s Stage) Known() bool {
	return s.Index() >= 0
}

func (s Stage) String() string {
	return string(s)
}
