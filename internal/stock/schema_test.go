package stock

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func schemaColumn(t *testing.T, table, column string) string {
	t.Helper()
	raw, err := os.ReadFile("../../scripts/schema.sql")
	require.NoError(t, err)

	block := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + table + ` \((.*?)\);`).
		FindStringSubmatch(string(raw))
	require.NotNilf(t, block, "table %s missing from schema", table)

	for _, line := range strings.Split(block[1], "\n") {
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		if strings.HasPrefix(line, column+" ") {
			return line
		}
	}
	t.Fatalf("column %s.%s missing from schema", table, column)
	return ""
}

// Capacity and max quantity are optional limits; the first add for a fresh
// (location, item) pair inserts nil, and a stored zero would reject every
// positive quantity. The columns must stay nullable.
func TestSchemaKeepsOptionalLimitsNullable(t *testing.T) {
	capacity := schemaColumn(t, "machine_stock", "capacity")
	require.NotContains(t, capacity, "NOT NULL")
	require.NotContains(t, capacity, "DEFAULT")

	maxQty := schemaColumn(t, "warehouse_stock", "max_quantity")
	require.NotContains(t, maxQty, "NOT NULL")
	require.NotContains(t, maxQty, "DEFAULT")
}

func TestSchemaKeepsQuantitiesRequired(t *testing.T) {
	for _, col := range []string{"quantity", "reserved_quantity", "min_quantity"} {
		require.Contains(t, schemaColumn(t, "warehouse_stock", col), "NOT NULL")
	}
	for _, col := range []string{"quantity", "min_quantity"} {
		require.Contains(t, schemaColumn(t, "machine_stock", col), "NOT NULL")
	}
}
