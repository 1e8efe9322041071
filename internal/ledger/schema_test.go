package ledger

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

// The account number is optional; uniqueness applies only to the accounts
// that carry one. NULLs never collide under a PostgreSQL UNIQUE constraint.
func TestSchemaAccountNumberIsOptionalAndUnique(t *testing.T) {
	col := schemaColumn(t, "accounts", "account_number")
	require.Contains(t, col, "UNIQUE")
	require.NotContains(t, col, "NOT NULL")
}

// An account owns its transactions: deleting it removes them, and transfers
// into it from other accounts lose only the destination reference.
func TestSchemaAccountDeleteCascadesToTransactions(t *testing.T) {
	require.Contains(t, schemaColumn(t, "transactions", "account_id"), "ON DELETE CASCADE")
	require.Contains(t, schemaColumn(t, "transactions", "to_account_id"), "ON DELETE SET NULL")
}
