package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b (y String)
ENGINE = MergeTree();
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int32)", stmts[0])
	assert.Contains(t, stmts[1], "ENGINE = MergeTree()")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'a''b'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/prices")
	require.NoError(t, err)
	assert.Equal(t, "prices", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedFiles(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_runs.sql"}, pg)

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_prices.sql"}, ch)
}
