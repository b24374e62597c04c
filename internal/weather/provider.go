package weather

import "context"

// JSONFetcher issues a GET request and decodes the body into a generic
// JSON tree (maps, slices, float64, string, bool, nil).
type JSONFetcher interface {
	FetchJSON(ctx context.Context, rawURL string) (any, error)
}

// Lookup resolves a free-text city name to its current weather.
type Lookup interface {
	Resolve(ctx context.Context, city string) (Weather, error)
}
