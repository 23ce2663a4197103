package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_init.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestInitMigration_DefinesInvariantConstraints(t *testing.T) {
	body, err := migrationFiles.ReadFile("0001_init.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, table := range []string{
		"ticket_holds", "hold_allocations", "purchase_links", "purchase_link_accesses",
		"transactions", "bookings", "purchase_link_purchases", "ticket_definitions",
	} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
	assert.Contains(t, sql, "purchased_quantity <= allocated_quantity")
	assert.Contains(t, sql, "quantity_purchased <= quantity_limit")
}
