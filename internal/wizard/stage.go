// internal/wizard/stage.go
//
// Stages of the onboarding wizard. The sequence is fixed; whether the
// specialist-agents stage is present depends on engine configuration.

package wizard

// Stage identifies one step of the onboarding wizard.
type Stage int

const (
	StageNone Stage = iota
	StageIndustry
	StageBrand
	StageWorkspace
	StageAgents
	StageDocument
	StageReview
)

// String returns a human-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "Not Started"
	case StageIndustry:
		return "Industry"
	case StageBrand:
		return "Brand"
	case StageWorkspace:
		return "Workspace"
	case StageAgents:
		return "Specialist Agents"
	case StageDocument:
		return "Guideline Document"
	case StageReview:
		return "Review Rules"
	default:
		return "Unknown"
	}
}

// FriendlyName returns a short prompt suitable for the stage header.
func (s Stage) FriendlyName() string {
	switch s {
	case StageIndustry:
		return "Choose your industry"
	case StageBrand:
		return "Tell us about the brand"
	case StageWorkspace:
		return "Name the workspace"
	case StageAgents:
		return "Pick specialist agents"
	case StageDocument:
		return "Upload brand guidelines"
	case StageReview:
		return "Review extracted rules"
	default:
		return s.String()
	}
}

// IsTerminal reports whether the stage ends the wizard.
func (s Stage) IsTerminal() bool {
	return s == StageReview
}

// HasSideEffect reports whether advancing out of this stage performs a
// remote call. Workspace creation happens when leaving StageWorkspace;
// document upload plus rule extraction happens when leaving StageDocument.
func (s Stage) HasSideEffect() bool {
	return s == StageWorkspace || s == StageDocument
}

// defaultStages is the six-stage wizard. The five-stage variant drops
// StageAgents; see WithoutAgentStage.
var defaultStages = []Stage{
	StageIndustry,
	StageBrand,
	StageWorkspace,
	StageAgents,
	StageDocument,
	StageReview,
}
