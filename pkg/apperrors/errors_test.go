package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWalksWrapChain(t *testing.T) {
	base := TransientIO("llm.call", errors.New("timeout"))
	wrapped := fmt.Errorf("review cycle failed: %w", base)

	assert.True(t, Is(wrapped, CategoryTransientIO))
	assert.False(t, Is(wrapped, CategoryPolicyRejection))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := PolicyRejection("executor.policy_check", inner)
	assert.ErrorIs(t, err, inner)
}
