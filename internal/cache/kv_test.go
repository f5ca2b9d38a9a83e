package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaError(t *testing.T) {
	assert.NoError(t, quotaError(nil))

	oom := quotaError(errors.New("OOM command not allowed when used memory > 'maxmemory'."))
	assert.ErrorIs(t, oom, ErrStorageQuota)
	assert.Contains(t, oom.Error(), "maxmemory")

	other := errors.New("dial tcp: connection refused")
	assert.Same(t, other, quotaError(other))

	wrapped := quotaError(ErrStorageQuota)
	assert.Equal(t, ErrStorageQuota, wrapped)
}
