// Package posejson parses pose documents produced by vision models or fixture files.
//
// A document looks like:
//
//	{
//	  "space": "normalized",
//	  "poses": [
//	    {"score": 0.9, "keypoints": [{"name": "left_shoulder", "x": 0.41, "y": 0.22, "score": 0.93}]}
//	  ]
//	}
//
// "space" is "pixel" (default) or "normalized"; normalized coordinates must lie
// in [0, 1] and are mapped to pixels of the image the poses were detected on.
package posejson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Coordinate spaces
const (
	SpacePixel      = "pixel"
	SpaceNormalized = "normalized"
)

// Schema is the JSON schema every pose document must satisfy
const Schema = `{
  "type": "object",
  "required": ["poses"],
  "properties": {
    "space": {"type": "string", "enum": ["pixel", "normalized"]},
    "poses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["keypoints"],
        "properties": {
          "score": {"type": "number", "minimum": 0, "maximum": 1},
          "keypoints": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "x", "y", "score"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "x": {"type": "number"},
                "y": {"type": "number"},
                "score": {"type": "number", "minimum": 0, "maximum": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(Schema)

// Document is the decoded form of a pose document
type Document struct {
	Space string       `json:"space,omitempty"`
	Poses []types.Pose `json:"poses"`
}

// Validate checks raw JSON against Schema
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("pose document validation failed: %v", errs)
	}
	return nil
}

// Parse validates a pose document and returns its poses in pixel coordinates
// of a width x height image.
func Parse(raw []byte, width, height int) ([]types.Pose, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pose document: %w", err)
	}

	if doc.Space == SpaceNormalized {
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("normalized poses need image dimensions, got %dx%d", width, height)
		}
		for i := range doc.Poses {
			for j := range doc.Poses[i].Keypoints {
				kp := &doc.Poses[i].Keypoints[j]
				if kp.X < 0 || kp.X > 1 || kp.Y < 0 || kp.Y > 1 {
					return nil, fmt.Errorf("normalized keypoint %s at (%g, %g) is outside [0, 1]", kp.Name, kp.X, kp.Y)
				}
				kp.X *= float64(width)
				kp.Y *= float64(height)
			}
		}
	}
	return doc.Poses, nil
}

// ParseModelOutput cleans up a model reply and parses the pose document inside it
func ParseModelOutput(raw string, width, height int) ([]types.Pose, error) {
	cleaned := Sanitize(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	return Parse([]byte(cleaned), width, height)
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// Sanitize removes code fences, comments and trailing commas from a model's JSON reply
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
