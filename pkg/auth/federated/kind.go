// Package federated implements authorization against a federated identity
// broker. Tokens come in two kinds with separate lifecycles: administrative
// tokens cover account-level table operations and are acquired on demand
// only, while data-plane tokens cover everything else and are kept warm by a
// background refresh.
package federated

import (
	"strings"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

// TokenKind selects which access token an operation requires.
type TokenKind int

const (
	// DataPlane tokens authorize data operations and metadata reads.
	DataPlane TokenKind = iota
	// Administrative tokens authorize account-level table management.
	Administrative
)

func (k TokenKind) String() string {
	if k == Administrative {
		return "administrative"
	}
	return "data-plane"
}

const dropTableKeyword = "DROP TABLE"

// kindFor classifies a request. Administrative covers listing tables,
// table DDL that carries explicit capacity limits (create table, alter
// limits), and drop-table statements. Everything else runs on the
// data-plane token.
func kindFor(req *auth.Request) TokenKind {
	switch {
	case req == nil:
		return DataPlane
	case req.Op == auth.OpListTables:
		return Administrative
	case req.Op != auth.OpTableDDL:
		return DataPlane
	case req.TableLimits != nil:
		return Administrative
	case req.Statement != "":
		normalized := strings.ToUpper(strings.Join(strings.Fields(req.Statement), " "))
		if strings.HasPrefix(normalized, dropTableKeyword) {
			return Administrative
		}
	}
	return DataPlane
}
