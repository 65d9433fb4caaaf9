package lane

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taxonomyConfig = `
lanes:
  - name: "Docs: API"
  - name: "Docs: Guides"
  - name: Core
`

func TestSubLanesOf(t *testing.T) {
	r := registryWith(t, taxonomyConfig)
	assert.Equal(t, []string{"API", "Guides"}, r.SubLanesOf("Docs"))
	assert.Empty(t, r.SubLanesOf("Core"))
	assert.Empty(t, r.SubLanesOf("Nonexistent"))
}

func TestValidateLaneStrict(t *testing.T) {
	r := registryWith(t, taxonomyConfig)

	// Known sub-lane passes, case-insensitively.
	assert.NoError(t, r.ValidateLane("Docs: API", true))
	assert.NoError(t, r.ValidateLane("docs: api", true))

	// Bare parent with a taxonomy is rejected in strict mode, with the
	// valid sub-lane list attached.
	err := r.ValidateLane("Docs", true)
	require.Error(t, err)
	var terr *TaxonomyError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []string{"API", "Guides"}, terr.ValidSubLanes)
	assert.Contains(t, terr.Error(), "API")

	// Unknown sub-lane under a taxonomy-bearing parent is rejected by name.
	err = r.ValidateLane("Docs: Tutorials", true)
	require.Error(t, err)
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, terr.Reason, "Tutorials")
}

func TestValidateLaneNonStrictAllowsBareParentOnly(t *testing.T) {
	r := registryWith(t, taxonomyConfig)

	// Non-strict mode logs instead of rejecting, bare parent case only.
	assert.NoError(t, r.ValidateLane("Docs", false))

	// Unknown sub-lane is still rejected even in non-strict mode.
	assert.Error(t, r.ValidateLane("Docs: Tutorials", false))
}

func TestValidateLaneParentWithoutTaxonomy(t *testing.T) {
	r := registryWith(t, taxonomyConfig)
	assert.NoError(t, r.ValidateLane("Core", true))
	// No taxonomy registered for Core, so any sub-lane is accepted.
	assert.NoError(t, r.ValidateLane("Core: Anything", true))
	// Entirely unconfigured parents accept bare usage unconditionally.
	assert.NoError(t, r.ValidateLane("Research", true))
}

func TestValidateLaneMalformed(t *testing.T) {
	r := registryWith(t, taxonomyConfig)
	for _, bad := range []string{"", "  ", "Docs:", ": API"} {
		assert.Error(t, r.ValidateLane(bad, true), "lane %q", bad)
	}
}
