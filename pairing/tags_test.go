package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodString(t *testing.T) {
	assert.Equal(t, "pair-setup", MethodPairSetup.String())
	assert.Equal(t, "pair-resume", MethodPairResume.String())
	assert.Equal(t, "unknown", Method(99).String())
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "authentication", ErrorAuthentication.String())
	assert.Equal(t, "busy", ErrorBusy.String())
	assert.Equal(t, "unrecognized", ErrorCode(0).String())
}
