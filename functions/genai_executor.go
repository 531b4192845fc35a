package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const toolInstruction = `You are a helpful pregnancy and commuting assistant answering on behalf of a voice companion.
Answer in plain spoken English, at most five short sentences, no markdown. Never diagnose; suggest a doctor or midwife for medical concerns.`

const placesInstruction = `You are a helpful pregnancy assistant. Provide concise information about nearby places highlighting accessibility, safety, and comfort features for pregnant women. Keep descriptions brief and practical.`

// ContentGenerator is the part of *genai.Models used for tool lookups.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIExecutor answers external tools with a text model and nearby place
// searches with Google Maps grounding.
type GenAIExecutor struct {
	models ContentGenerator
	model  string
	lat    float64
	lng    float64
}

// NewGenAIExecutor creates an executor. lat and lng locate place searches.
func NewGenAIExecutor(models ContentGenerator, model string, lat, lng float64) *GenAIExecutor {
	return &GenAIExecutor{models: models, model: model, lat: lat, lng: lng}
}

// Execute runs one external tool.
func (e *GenAIExecutor) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := Lookup(name)
	if !ok || tool.UI.IsUI() {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if name == FindNearbyPlaces {
		result, err := e.FindPlaces(ctx, PlaceTypeArg(args))
		if err != nil {
			return "", err
		}
		return result.Message(), nil
	}

	prompt, err := tool.Prompt(args)
	if err != nil {
		return "", err
	}

	resp, err := e.models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(toolInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// FindPlaces searches near the configured location.
func (e *GenAIExecutor) FindPlaces(ctx context.Context, placeType string) (PlaceResult, error) {
	if placeType == "" {
		return PlaceResult{}, errors.New("place_type is required")
	}

	lat, lng := e.lat, e.lng
	prompt := fmt.Sprintf("Find %s near my current location. List the top 5 closest ones with their names and why they're suitable for pregnant women (accessibility, comfort, safety features).", placeType)

	resp, err := e.models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(placesInstruction, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}},
		ToolConfig: &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{Latitude: &lat, Longitude: &lng},
			},
		},
	})
	if err != nil {
		return PlaceResult{}, fmt.Errorf("maps grounding failed: %w", err)
	}

	result := PlaceResult{
		PlaceType: placeType,
		Summary:   strings.TrimSpace(resp.Text()),
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Maps == nil || chunk.Maps.Title == "" {
				logger.DebugContext(ctx, "skipping grounding chunk without a place", "place_type", placeType)
				continue
			}
			// Grounding chunks carry no coordinates; places are pinned to the search origin.
			result.Places = append(result.Places, Place{
				Name:    chunk.Maps.Title,
				PlaceID: strings.TrimPrefix(chunk.Maps.PlaceID, "places/"),
				URI:     chunk.Maps.URI,
				Lat:     lat,
				Lng:     lng,
			})
		}
		break
	}
	logger.InfoContext(ctx, "nearby places found", "place_type", placeType, "count", len(result.Places))
	return result, nil
}
