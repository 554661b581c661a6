package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rundex/agentrelay/catalog"
)

// GreetingCatalog registers the two standard test agents, hello-agent and
// goodbye-agent, against the given endpoints.
func GreetingCatalog(t *testing.T, helloURL, goodbyeURL string) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	require.NoError(t, cat.Register(catalog.Descriptor{
		ID:           "hello-agent",
		Name:         "Hello Agent",
		Description:  "Says hello in multiple languages",
		Capabilities: []string{"hello", "hi", "greet"},
		Endpoint:     helloURL,
	}))
	require.NoError(t, cat.Register(catalog.Descriptor{
		ID:           "goodbye-agent",
		Name:         "Goodbye Agent",
		Description:  "Says goodbye in multiple languages",
		Capabilities: []string{"goodbye", "bye", "farewell"},
		Endpoint:     goodbyeURL,
	}))
	return cat
}

// QueryArgs marshals the single query argument of an agent tool call.
func QueryArgs(t *testing.T, query string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)
	return raw
}
