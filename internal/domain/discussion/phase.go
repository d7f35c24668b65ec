package discussion

// Phase is the coarse-grained discussion stage computed from round progress.
type Phase string

const (
	PhaseInitial     Phase = "initial"
	PhaseExploration Phase = "exploration"
	PhaseAnalysis    Phase = "analysis"
	PhaseSynthesis   Phase = "synthesis"
	PhaseConclusion  Phase = "conclusion"
)

// PhaseFor computes the phase of a turn about to be produced for
// currentRound out of maxRounds, per spec §4.4.
//
// currentRound = 0 is always "initial". For subsequent rounds the phase is
// derived from progress p = (currentRound-1)/(maxRounds-1).
func PhaseFor(currentRound, maxRounds int) Phase {
	if currentRound <= 0 {
		return PhaseInitial
	}
	if maxRounds <= 1 {
		return PhaseConclusion
	}
	p := float64(currentRound-1) / float64(maxRounds-1)
	switch {
	case p < 0.4:
		return PhaseExploration
	case p < 0.7:
		return PhaseAnalysis
	case p < 0.9:
		return PhaseSynthesis
	default:
		return PhaseConclusion
	}
}

// Guideline returns the phase-specific guidance injected into the system
// prompt for a turn.
func (p Phase) Guideline() string {
	switch p {
	case PhaseInitial:
		return "Share your initial viewpoint on the topic, laying out your position and reasoning."
	case PhaseExploration:
		return "Explore the topic broadly. Raise angles other participants have not yet covered."
	case PhaseAnalysis:
		return "Analyze the strongest points raised so far. Weigh tradeoffs and surface tensions between positions."
	case PhaseSynthesis:
		return "Work toward common ground. Reconcile the threads raised by other participants where possible."
	case PhaseConclusion:
		return "Move toward a conclusion. State what you now believe and why, given everything discussed."
	default:
		return "Contribute your perspective on the topic."
	}
}

// FallbackPrompt returns the bare phase-appropriate user prompt used when no
// history fits the token budget (§4.4 step 5) or when the turn executor
// retries with a terse, phase-generic prompt (§4.5 step 3).
func (p Phase) FallbackPrompt(topic string) string {
	switch p {
	case PhaseInitial:
		return "Share your initial viewpoint on: " + topic
	case PhaseExploration:
		return "Continue exploring the topic: " + topic + ". Raise a new angle."
	case PhaseAnalysis:
		return "Analyze the discussion so far on: " + topic + "."
	case PhaseSynthesis:
		return "Work toward common ground on: " + topic + "."
	case PhaseConclusion:
		return "Offer your concluding perspective on: " + topic + "."
	default:
		return "Contribute to the discussion about: " + topic
	}
}
