package valuegen

// Export for testing
type APIClient = apiClient

// NewWithAPIClient creates a generator over a custom API client for testing.
func NewWithAPIClient(client apiClient, opts Options) *Generator {
	return newGenerator(client, opts)
}

var IsTransient = isTransient
