package commands_test

import (
	"testing"

	"github.com/fsmeraldi/diy-covid19dash/cmd/covidash/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFetchCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewFetchCommand()
	assert.Equal(t, "fetch <theme> <sub_theme> <topic> <geography_type> <geography> <metric>", cmd.Use)
	assert.Equal(t, "Fetch a dataset from the dashboard", cmd.Short)

	for _, flag := range []string{"filter", "page-size", "all", "save", "date-field", "columns"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewFetchCommand_RequiresSixArguments(t *testing.T) {
	t.Parallel()

	cmd := commands.NewFetchCommand()

	err := cmd.Args(cmd, []string{"infectious_disease", "respiratory", "COVID-19"})
	assert.Error(t, err)

	err = cmd.Args(cmd, []string{
		"infectious_disease", "respiratory", "COVID-19",
		"Nation", "England", "COVID-19_deaths_ONSByDay",
	})
	assert.NoError(t, err)
}

func TestParseFilters_Valid(t *testing.T) {
	t.Parallel()

	filters, err := commands.ParseFilters([]string{"sex=all", "year=2023", "age="})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"sex":  "all",
		"year": "2023",
		"age":  "",
	}, filters)
}

func TestParseFilters_Invalid(t *testing.T) {
	t.Parallel()

	_, err := commands.ParseFilters([]string{"no-separator"})
	assert.Error(t, err)

	_, err = commands.ParseFilters([]string{"=value"})
	assert.Error(t, err)
}

func TestParseFilters_Empty(t *testing.T) {
	t.Parallel()

	filters, err := commands.ParseFilters(nil)
	require.NoError(t, err)
	assert.Empty(t, filters)
}
