// Package testutil contains helpers shared across tests: stub agent HTTP
// servers speaking the runtime wire protocol and pre-registered catalog
// fixtures. These helpers keep test setup small and are not intended for
// production usage.
package testutil
