package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyEvaluate(t *testing.T) {
	t.Parallel()
	p := Policy{AutobanThreshold: DefaultAutobanThreshold}

	for count := 1; count < 5; count++ {
		assert.Equal(t, EscalationNormal, p.Evaluate(count), count)
	}
	assert.Equal(t, EscalationAutoban, p.Evaluate(5))
	assert.Equal(t, EscalationAutoban, p.Evaluate(6))
}

func TestPolicyThresholdDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultAutobanThreshold, Policy{}.Threshold())
	assert.Equal(t, 3, Policy{AutobanThreshold: 3}.Threshold())
	assert.Equal(t, EscalationAutoban, Policy{AutobanThreshold: 3}.Evaluate(3))
	assert.Equal(t, "autoban", EscalationAutoban.String())
	assert.Equal(t, "normal", EscalationNormal.String())
}
