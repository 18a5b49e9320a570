// Package serving implements the request contract the serving container
// honors: decode a request body by its declared content type, score it,
// pick the highest-scoring label, and encode a {sentiment, score} response.
// The generated script in the model bundle follows the same contract; this
// package is the executable reference for it.
package serving

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ContentTypeText is the only request media type the handler decodes.
	ContentTypeText = "application/x-text"
	// ContentTypeJSON is the response media type.
	ContentTypeJSON = "application/json"
)

// UnsupportedContentTypeError names a request media type the handler
// cannot decode.
type UnsupportedContentTypeError struct {
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %q (expected %s)", e.ContentType, ContentTypeText)
}

// Prediction is one scored label from the model.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Response is the serialized inference result. Exactly two keys.
type Response struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// Predictor scores a single text input. The pretrained model behind it is
// an opaque collaborator.
type Predictor interface {
	Predict(text string) ([]Prediction, error)
}

// Handler ties together decode, predict, and encode.
type Handler struct {
	predictor Predictor
}

// NewHandler creates a Handler over the given predictor.
func NewHandler(p Predictor) *Handler {
	return &Handler{predictor: p}
}

// DecodeInput validates the declared content type and returns the text
// payload. Media type parameters (e.g. charset) are tolerated.
func DecodeInput(body []byte, contentType string) (string, error) {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if mediaType != ContentTypeText {
		return "", &UnsupportedContentTypeError{ContentType: contentType}
	}
	return string(body), nil
}

// Handle runs the full request path and returns the encoded JSON response.
func (h *Handler) Handle(body []byte, contentType string) ([]byte, error) {
	text, err := DecodeInput(body, contentType)
	if err != nil {
		return nil, err
	}

	preds, err := h.predictor.Predict(text)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(preds) == 0 {
		return nil, fmt.Errorf("predict: model returned no labels")
	}

	best := preds[0]
	for _, p := range preds[1:] {
		if p.Score > best.Score {
			best = p
		}
	}

	out, err := json.Marshal(Response{Sentiment: best.Label, Score: best.Score})
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
