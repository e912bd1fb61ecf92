// Package llm talks to OpenAI-compatible completion endpoints.
package llm

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Message is one prompt turn sent to a completion endpoint.
type Message struct {
	Role    string
	Content string
	// MediaURL carries an image for vision models, either an http(s) URL or
	// raw base64 data.
	MediaURL string
}

// Chunk is one delta of a streaming completion.
type Chunk struct {
	Role     string
	Content  string
	Finished bool
	// Reasoning marks chunks that belong to the model's reasoning trace
	// rather than the final answer.
	Reasoning bool
}

// Request is a completion request against one endpoint.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
}

// Provider converts requests into provider-specific API calls.
type Provider interface {
	// StreamCompletion starts a streaming completion. The chunk channel is
	// closed after the terminal chunk; a stream failure is delivered on the
	// error channel instead.
	StreamCompletion(ctx context.Context, endpoint *Endpoint, req *Request) (<-chan Chunk, <-chan error, error)

	// Completion performs one synchronous completion.
	Completion(ctx context.Context, endpoint *Endpoint, req *Request) (string, error)
}

// Endpoint is one configured completion API. Endpoints are loaded once from
// configuration and read-only at runtime.
type Endpoint struct {
	Name            string   `mapstructure:"name"`
	APIURL          string   `mapstructure:"api_url"`
	SecretKey       string   `mapstructure:"secret_key"`
	Models          []string `mapstructure:"models"`
	DefaultModel    string   `mapstructure:"default_model"`
	Provider        string   `mapstructure:"provider"`
	GenerateTitle   bool     `mapstructure:"generate_title"`
	DefaultEndpoint bool     `mapstructure:"default_endpoint"`
}

// Validate checks the required fields and applies defaults.
func (e *Endpoint) Validate() error {
	if e.Name == "" {
		return errors.New("endpoint name can't be empty")
	}
	if e.APIURL == "" {
		return errors.Errorf("endpoint %s: api url can't be empty", e.Name)
	}
	if e.SecretKey == "" {
		return errors.Errorf("endpoint %s: secret key can't be empty", e.Name)
	}
	if len(e.Models) == 0 {
		return errors.Errorf("endpoint %s: models can't be empty", e.Name)
	}
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if _, ok := providers[e.Provider]; !ok {
		return errors.Errorf("endpoint %s: provider %q not supported", e.Name, e.Provider)
	}
	if e.DefaultModel == "" {
		e.DefaultModel = e.Models[0]
	}
	return nil
}

// SupportsModel reports whether the endpoint serves the given model.
func (e *Endpoint) SupportsModel(model string) bool {
	for _, m := range e.Models {
		if m == model {
			return true
		}
	}
	return false
}

// providers maps a provider kind to its constructor. Kinds are registered at
// startup; there is no runtime discovery.
var providers = map[string]func() Provider{
	"openai": func() Provider { return &openaiProvider{} },
}

// ProviderFor returns the provider implementation for an endpoint.
func ProviderFor(endpoint *Endpoint) (Provider, error) {
	ctor, ok := providers[endpoint.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %q not supported", endpoint.Provider)
	}
	return ctor(), nil
}

// Endpoints is the configured endpoint set.
type Endpoints []*Endpoint

// LoadEndpoints reads the endpoint list from a YAML/JSON config file.
func LoadEndpoints(path string) (Endpoints, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read endpoints config %q", path)
	}

	var endpoints Endpoints
	if err := v.UnmarshalKey("endpoints", &endpoints); err != nil {
		return nil, errors.Wrap(err, "failed to parse endpoints config")
	}
	if len(endpoints) == 0 {
		return nil, errors.New("endpoints is required")
	}
	for _, e := range endpoints {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return endpoints, nil
}

// Get returns the endpoint with the given name, or nil.
func (es Endpoints) Get(name string) *Endpoint {
	for _, e := range es {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Default returns the endpoint flagged as process default, falling back to
// the first one.
func (es Endpoints) Default() *Endpoint {
	for _, e := range es {
		if e.DefaultEndpoint {
			return e
		}
	}
	return es[0]
}

// TitleEndpoint picks a random endpoint that participates in title
// generation, or nil if none does.
func (es Endpoints) TitleEndpoint() *Endpoint {
	var candidates []*Endpoint
	for _, e := range es {
		if e.GenerateTitle {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// Models returns the sorted union of all endpoint model names.
func (es Endpoints) Models() []string {
	seen := map[string]bool{}
	var models []string
	for _, e := range es {
		for _, m := range e.Models {
			if !seen[m] {
				seen[m] = true
				models = append(models, m)
			}
		}
	}
	sort.Strings(models)
	return models
}
