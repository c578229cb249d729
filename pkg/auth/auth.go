package auth

import (
	"context"
	"net/http"
)

// HTTP header names used by providers when decorating outbound requests.
const (
	HeaderAuthorization = "Authorization"
	HeaderDate          = "Date"
	HeaderOBOToken      = "opc-obo-token"
	HeaderCompartment   = "x-nosql-compartment-id"
)

// Service URL paths. The data path is the target of signed requests; the
// security path is the base of the on-premises login/renew/logout service.
const (
	DataPath     = "V2/nosql/data"
	SecurityPath = "/V2/nosql/security"
)

// BearerPrefix is prepended to raw tokens when building an Authorization
// header value.
const BearerPrefix = "Bearer "

// BasicPrefix is used for basic-auth encoded credential pairs.
const BasicPrefix = "Basic "

// Provider supplies authorization strings for driver requests.
//
// The driver calls AuthorizationString once per outbound call. On a cache hit
// the call is synchronous and network-free; on a miss the provider performs a
// full credential acquisition before returning. Implementations must be safe
// for concurrent use.
type Provider interface {
	// AuthorizationString returns the authorization string appropriate for
	// req. An empty string with a nil error means the deployment does not
	// require authorization (e.g. a non-secure on-prem store).
	AuthorizationString(ctx context.Context, req *Request) (string, error)

	// SetRequiredHeaders merges authString and any provider-specific headers
	// (date, compartment, delegation tokens) into headers before the request
	// is sent.
	SetRequiredHeaders(req *Request, authString string, headers http.Header) error

	// Close releases provider resources: it cancels any scheduled background
	// refresh and scrubs held secrets. Close is idempotent.
	Close() error
}

// OpKind identifies the shape of a driver request. It is a closed enum: the
// providers classify requests by switching on it rather than inspecting
// concrete request types.
type OpKind int

const (
	OpGet OpKind = iota
	OpPut
	OpDelete
	OpQuery
	OpPrepare
	OpGetTable
	OpTableDDL
	OpListTables
)

// String returns the operation name, for logs and metrics labels.
func (k OpKind) String() string {
	switch k {
	case OpGet:
		return "Get"
	case OpPut:
		return "Put"
	case OpDelete:
		return "Delete"
	case OpQuery:
		return "Query"
	case OpPrepare:
		return "Prepare"
	case OpGetTable:
		return "GetTable"
	case OpTableDDL:
		return "TableDDL"
	case OpListTables:
		return "ListTables"
	}
	return "Unknown"
}

// TableLimits carries the provisioned throughput and storage for a table.
// Its presence on a TableDDL request marks the request as a table create or
// an alter-limits operation.
type TableLimits struct {
	ReadUnits  int
	WriteUnits int
	StorageGB  int
}

// Request is the authorization-relevant view of a driver request.
type Request struct {
	// Op is the request shape.
	Op OpKind

	// Compartment is an explicit compartment for cloud deployments. Empty
	// means "use the provider default", which for user principals is the
	// tenancy.
	Compartment string

	// Statement is the DDL text for OpTableDDL requests, empty otherwise.
	Statement string

	// TableLimits is non-nil for table create and alter-limits requests.
	TableLimits *TableLimits
}
