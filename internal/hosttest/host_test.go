package hosttest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/internal/hosttest"
)

func TestGetModuleCountsLookups(t *testing.T) {
	t.Parallel()

	host := hosttest.New()
	require.NoError(t, host.Register("lib", []byte(`(function () { return { v: 1 }; })`)))

	value, err := host.Eval(`[System.getModule("lib").v, System.getModule("lib").v, System.getModule("none")].join(",")`)
	require.NoError(t, err)

	assert.Equal(t, "1,1,", value.String())
	assert.Equal(t, 2, host.Lookups("lib"))
	assert.Equal(t, 1, host.Lookups("none"))
	assert.Equal(t, []string{"lib", "none"}, host.Looked())
	assert.Equal(t, []string{"lib", "lib", "none"}, host.LookupLog())

	host.ResetLookups()
	assert.Empty(t, host.Looked())
}

func TestContextIsStableUntilReplaced(t *testing.T) {
	t.Parallel()

	host := hosttest.New()

	value, err := host.Eval(`System.getContext().marker = 1; System.getContext().marker`)
	require.NoError(t, err)
	assert.EqualValues(t, 1, value.Export())

	host.NewContext()

	value, err = host.Eval(`typeof System.getContext().marker`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", value.String())
}

func TestRegisterRejectsNonFunction(t *testing.T) {
	t.Parallel()

	host := hosttest.New()

	err := host.Register("x", []byte(`42`))
	require.ErrorIs(t, err, hosttest.ErrNotFunction)

	_, err = host.Run("x")
	require.ErrorIs(t, err, hosttest.ErrUnknownUnit)
}

func TestErrorsPropagateAsExceptions(t *testing.T) {
	t.Parallel()

	host := hosttest.New()
	require.NoError(t, host.Register("bad", []byte(`(function () {
    var e = new Error("boom");
    e.name = "Custom";
    throw e;
})`)))

	_, err := host.Eval(`System.getModule("bad")`)
	require.Error(t, err)
	assert.Equal(t, "Custom", hosttest.ErrorName(err))
	assert.Empty(t, hosttest.ErrorName(assert.AnError))
}
