package client

import (
	"context"
)

// VisionClient talks to a multimodal model server used for pose estimation
type VisionClient interface {
	// Ping checks the server is reachable and the model is available
	Ping(ctx context.Context, model string) error
	// SimpleQuery sends a prompt with one base64 image and returns the raw reply
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
