package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	fwerrors "FareWatch/pkg/errors"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      string
		transient bool
	}{
		{429, fwerrors.ProviderRateLimited.Code, true},
		{401, fwerrors.ProviderAuthFailed.Code, false},
		{403, fwerrors.ProviderAuthFailed.Code, false},
		{500, fwerrors.ProviderUnavailable.Code, true},
		{503, fwerrors.ProviderUnavailable.Code, true},
		{400, fwerrors.ProviderBadRequest.Code, false},
	}

	for _, tt := range tests {
		pe := classifyStatus("amadeus", tt.status, "body")
		assert.Equal(t, tt.code, pe.Code, "status %d", tt.status)
		assert.Equal(t, tt.transient, pe.Transient, "status %d", tt.status)
	}
}

func TestIsTransientUnwrapsChain(t *testing.T) {
	pe := &ProviderError{Provider: "kiwi", Code: fwerrors.ProviderRateLimited.Code, Transient: true}
	wrapped := fmt.Errorf("search failed: %w", pe)

	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTransient(errors.New("plain error")))
}
