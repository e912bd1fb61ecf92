package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEndpoint() *Endpoint {
	return &Endpoint{
		Name:      "openai",
		APIURL:    "https://api.openai.com/v1",
		SecretKey: "sk-test",
		Models:    []string{"gpt-4o", "gpt-4o-mini"},
	}
}

func TestEndpointValidateDefaults(t *testing.T) {
	e := validEndpoint()
	require.NoError(t, e.Validate())
	assert.Equal(t, "openai", e.Provider)
	assert.Equal(t, "gpt-4o", e.DefaultModel)
}

func TestEndpointValidateRejectsIncomplete(t *testing.T) {
	cases := map[string]func(*Endpoint){
		"missing name":    func(e *Endpoint) { e.Name = "" },
		"missing url":     func(e *Endpoint) { e.APIURL = "" },
		"missing key":     func(e *Endpoint) { e.SecretKey = "" },
		"missing models":  func(e *Endpoint) { e.Models = nil },
		"unknown backend": func(e *Endpoint) { e.Provider = "smoke-signals" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := validEndpoint()
			mutate(e)
			assert.Error(t, e.Validate())
		})
	}
}

func TestSupportsModel(t *testing.T) {
	e := validEndpoint()
	assert.True(t, e.SupportsModel("gpt-4o-mini"))
	assert.False(t, e.SupportsModel("claude-sonnet"))
}

func TestEndpointsLookup(t *testing.T) {
	es := Endpoints{
		{Name: "a", Models: []string{"m1"}},
		{Name: "b", Models: []string{"m2", "m1"}, DefaultEndpoint: true, GenerateTitle: true},
	}

	assert.Equal(t, "b", es.Get("b").Name)
	assert.Nil(t, es.Get("c"))
	assert.Equal(t, "b", es.Default().Name)
	assert.Equal(t, []string{"m1", "m2"}, es.Models())

	title := es.TitleEndpoint()
	require.NotNil(t, title)
	assert.Equal(t, "b", title.Name)
}

func TestDefaultFallsBackToFirst(t *testing.T) {
	es := Endpoints{{Name: "only"}}
	assert.Equal(t, "only", es.Default().Name)
	assert.Nil(t, es.TitleEndpoint())
}

func TestLoadEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoints:
  - name: openai
    api_url: https://api.openai.com/v1
    secret_key: sk-test
    models:
      - gpt-4o
    default_endpoint: true
  - name: local
    api_url: http://localhost:8080/v1
    secret_key: none
    models:
      - llama
    default_model: llama
`), 0o600))

	es, err := LoadEndpoints(path)
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, "openai", es.Default().Name)
	assert.Equal(t, "gpt-4o", es[0].DefaultModel)
	assert.Equal(t, "llama", es[1].DefaultModel)
}

func TestLoadEndpointsRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoints: []\n"), 0o600))
	_, err := LoadEndpoints(path)
	assert.Error(t, err)
}

func TestProviderFor(t *testing.T) {
	p, err := ProviderFor(&Endpoint{Provider: "openai"})
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = ProviderFor(&Endpoint{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
