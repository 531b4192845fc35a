package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FallbackResult answers a tool call whose execution failed.
const FallbackResult = "I'm sorry, I couldn't process that request."

// ErrUnknownTool is returned for names outside the external catalog.
var ErrUnknownTool = errors.New("unknown tool")

// Executor runs externally executed tools.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, args map[string]any) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	return f(ctx, name, args)
}

// Place is one nearby place result.
type Place struct {
	Name       string  `json:"name"`
	PlaceID    string  `json:"placeId,omitempty"`
	URI        string  `json:"uri,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	DistanceKM float64 `json:"distance"`
}

// PlaceResult is the outcome of a nearby places search.
type PlaceResult struct {
	PlaceType string
	Summary   string
	Places    []Place
}

// Message is the tool response text for the result.
func (r PlaceResult) Message() string {
	if len(r.Places) == 0 {
		if r.Summary != "" {
			return r.Summary
		}
		return fmt.Sprintf("I couldn't find any %s nearby.", r.PlaceType)
	}
	if r.Summary != "" {
		return r.Summary
	}
	names := make([]string, 0, len(r.Places))
	for _, p := range r.Places {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("I found %d %s nearby: %s.", len(r.Places), r.PlaceType, strings.Join(names, ", "))
}

// PlaceFinder is implemented by executors that can return structured place
// results for find_nearby_places.
type PlaceFinder interface {
	FindPlaces(ctx context.Context, placeType string) (PlaceResult, error)
}

// PlaceTypeArg extracts place_type from find_nearby_places arguments.
func PlaceTypeArg(args map[string]any) string {
	var a placeArgs
	if err := decodeArgs(args, &a); err != nil {
		return ""
	}
	return a.PlaceType
}
