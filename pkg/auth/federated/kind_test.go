package federated

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

func TestKindFor(t *testing.T) {
	t.Parallel()

	limits := &auth.TableLimits{ReadUnits: 50, WriteUnits: 50, StorageGB: 25}

	tests := []struct {
		name string
		req  *auth.Request
		want TokenKind
	}{
		{"nil request", nil, DataPlane},
		{"get", &auth.Request{Op: auth.OpGet}, DataPlane},
		{"put", &auth.Request{Op: auth.OpPut}, DataPlane},
		{"query", &auth.Request{Op: auth.OpQuery, Statement: "SELECT * FROM users"}, DataPlane},
		{"get table", &auth.Request{Op: auth.OpGetTable}, DataPlane},
		{"list tables", &auth.Request{Op: auth.OpListTables}, Administrative},
		{"create table with limits", &auth.Request{
			Op:          auth.OpTableDDL,
			Statement:   "CREATE TABLE users (id LONG, PRIMARY KEY(id))",
			TableLimits: limits,
		}, Administrative},
		{"alter limits", &auth.Request{Op: auth.OpTableDDL, TableLimits: limits}, Administrative},
		{"alter table without limits", &auth.Request{
			Op:        auth.OpTableDDL,
			Statement: "ALTER TABLE users (ADD age INTEGER)",
		}, DataPlane},
		{"drop table", &auth.Request{
			Op:        auth.OpTableDDL,
			Statement: "DROP TABLE users",
		}, Administrative},
		{"drop table ragged whitespace and case", &auth.Request{
			Op:        auth.OpTableDDL,
			Statement: "   dRoP \t  TaBlE \n users",
		}, Administrative},
		{"drop index is not drop table", &auth.Request{
			Op:        auth.OpTableDDL,
			Statement: "DROP INDEX idx ON users",
		}, DataPlane},
		{"empty ddl statement", &auth.Request{Op: auth.OpTableDDL}, DataPlane},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, kindFor(tc.req))
		})
	}
}

func TestTokenKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data-plane", DataPlane.String())
	assert.Equal(t, "administrative", Administrative.String())
}
