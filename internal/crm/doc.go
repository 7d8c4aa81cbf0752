// Package crm is the boundary to the CRM that receives synthetic activity.
//
// Client is the contract the orchestrator depends on. Salesforce talks to
// the Salesforce REST API; Mock is an in-memory stand-in used for dry runs
// and tests. Errors returned by Salesforce can be inspected with the
// predicate functions (IsNotFound, IsRetryable, ...).
package crm
