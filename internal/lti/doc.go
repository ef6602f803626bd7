// Package lti implements the wire-level protocol logic for the LTI 1.1
// Basic Outcomes and memberships-exchange services.
//
// It covers four concerns:
//
//   - request authentication: OAuth 1.0 HMAC-SHA1 body signing, verified
//     against an ordered list of candidate shared secrets so that secret
//     rotation can keep old and new secrets valid during a transition window
//     (oauth.go)
//   - sourcedid integrity: the opaque result identifier handed to tools binds
//     (tool instance, user, launch) with a salted SHA-256 digest that is
//     recomputed and compared on every inbound message (sourcedid.go)
//   - message parsing: the five core POX message kinds are decoded and
//     validated from the imsx_POXEnvelopeRequest schema (parse.go)
//   - response generation: success/failure envelopes and membership listings
//     in the fixed imsx_POXEnvelopeResponse schema (response.go,
//     memberships.go)
//
// Non-core message types can be routed to externally registered handlers via
// the ExtensionRegistry (extensions.go).
//
// The package owns no persistent state: grade mutation is delegated to the
// grades package, storage to the database package.
package lti
