package moderation

// DefaultAutobanThreshold is the warning count that triggers an automatic ban.
const DefaultAutobanThreshold = 5

// Escalation is the consequence of a member's warning total.
type Escalation int

const (
	EscalationNormal Escalation = iota
	EscalationAutoban
)

func (e Escalation) String() string {
	if e == EscalationAutoban {
		return "autoban"
	}
	return "normal"
}

// Policy decides when warnings escalate.
type Policy struct {
	AutobanThreshold int
}

// Threshold returns the effective autoban threshold.
func (p Policy) Threshold() int {
	if p.AutobanThreshold <= 0 {
		return DefaultAutobanThreshold
	}
	return p.AutobanThreshold
}

// Evaluate maps a warning total to its escalation.
func (p Policy) Evaluate(warningCount int) Escalation {
	if warningCount >= p.Threshold() {
		return EscalationAutoban
	}
	return EscalationNormal
}
