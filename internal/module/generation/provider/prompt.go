package provider

import (
	"fmt"
	"strings"

	"github.com/prostudio/server/internal/domain/generation"
)

// Raw user prompts underperform on both providers, so every submission
// appends fixed enhancement phrasing suited to the request kind before
// the payload is built.

const editEnhancement = "Professional product photography, studio lighting, " +
	"clean seamless background, sharp focus, high detail, commercial quality."

const videoEnhancement = "Smooth cinematic motion, stable framing, " +
	"natural lighting, product stays in focus throughout."

var cameraPhrasing = map[generation.CameraMovement]string{
	generation.CameraStatic:   "The camera remains static.",
	generation.CameraZoomIn:   "The camera slowly zooms in on the product.",
	generation.CameraZoomOut:  "The camera slowly zooms out to reveal the scene.",
	generation.CameraPanLeft:  "The camera pans left across the scene.",
	generation.CameraPanRight: "The camera pans right across the scene.",
	generation.CameraOrbit:    "The camera orbits around the product.",
}

// EnhancePrompt expands the user's prompt with kind-appropriate phrasing.
// Video prompts additionally pick up camera-movement instructions when the
// request names a movement.
func EnhancePrompt(req *generation.Request) string {
	prompt := strings.TrimSpace(req.Prompt)

	switch req.Kind {
	case generation.KindImageEdit:
		return fmt.Sprintf("%s %s", prompt, editEnhancement)
	case generation.KindImageToVideo:
		parts := []string{prompt, videoEnhancement}
		if phrase, ok := cameraPhrasing[req.CameraMovement]; ok {
			parts = append(parts, phrase)
		}
		return strings.Join(parts, " ")
	default:
		return prompt
	}
}
