// Package auth defines the authorization contract between the ReefDB driver
// and the pluggable credential providers that back it.
//
// Every outbound database call carries a short-lived bearer credential. The
// driver obtains that credential through the Provider interface: once per
// request it calls AuthorizationString, then merges the result into the
// outgoing HTTP headers with SetRequiredHeaders. Providers cache credentials
// internally and refresh them in the background, so on the hot path a call is
// a lock-free-ish cache read with no network traffic.
//
// Three provider families implement the interface, one per deployment trust
// model:
//
//   - cloudsig: request signatures produced by a cloud identity principal
//     (user key, instance principal, or resource principal)
//   - federated: OAuth-style access tokens exchanged with an identity broker
//   - session: login tokens issued by an on-premises security service
//
// The shared building blocks live here: TimedCache for expiring credential
// storage, RefreshScheduler for the proactive background refresh timer, and
// the error taxonomy (ConfigError, AuthError, RetryableError) that the
// driver's retry layer uses to decide whether a failed request is worth
// retrying.
//
// All Provider implementations are safe for concurrent use by any number of
// goroutines sharing one instance.
package auth
