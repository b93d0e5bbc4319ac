package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShelfCheckout(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/shelf_checkout.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Passed, "failures: %v", result.Failures)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, "created with status 'in_library'", result.Trace[0].Outcome)
	assert.Equal(t, "expired 1", result.Trace[2].Outcome)
	assert.Equal(t, "expired 0", result.Trace[3].Outcome)
}

func TestRunIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/return_and_reshelve.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}

func TestRunReportsAssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "asserts the wrong final status",
		Readers: map[string]ReaderDef{
			"192.168.1.101": {Kind: "shelf", Name: "Fiction A"},
		},
		Steps: []Step{
			{Detect: &SensorStep{Reader: "192.168.1.101", Key: "A1B2C3D4E5F6", Kind: "shelf"}},
		},
		Assertions: []Assertion{
			{Type: AssertItemStatus, Key: "A1B2C3D4E5F6", Status: "borrowed"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], `has status "in_library", want "borrowed"`)
}

func TestRunMissingRecordFailsAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing-record",
		Description: "absence of a never-sighted item creates nothing",
		Readers: map[string]ReaderDef{
			"192.168.1.101": {Kind: "shelf", Name: "Fiction A"},
		},
		Steps: []Step{
			{Vanish: &SensorStep{Reader: "192.168.1.101", Key: "A1B2C3D4E5F6", Kind: "shelf"}},
		},
		Assertions: []Assertion{
			{Type: AssertItemStatus, Key: "A1B2C3D4E5F6", Status: "borrowed"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "no-op", result.Trace[0].Outcome)
	assert.Contains(t, result.Failures[0], "no record for key")
}
