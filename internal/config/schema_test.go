package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	err := Validate(TestRunner{Workers: 4, Retries: 2, Timeout: 5000, Shard: "1/3"})
	require.NoError(t, err)
}

func TestSchemaRejectsMalformedShard(t *testing.T) {
	t.Parallel()
	err := Validate(TestRunner{Shard: "not-a-shard"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run configuration")
}

func TestSchemaRejectsNegativeWorkers(t *testing.T) {
	t.Parallel()
	err := Validate(TestRunner{Workers: -1})
	require.Error(t, err)
}

func TestValidateAcceptsZeroValueDefaults(t *testing.T) {
	t.Parallel()
	err := Validate(TestRunner{})
	assert.NoError(t, err)
}
