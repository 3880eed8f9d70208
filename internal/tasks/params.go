package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"dramaflow/internal/services"
)

// Provider names a generation provider.
type Provider string

const (
	ProviderSeedream Provider = "bytedance-seedream"
	ProviderSeedance Provider = "bytedance-seedance"
	ProviderKling    Provider = "kling"
	ProviderVidu     Provider = "vidu"
)

var providerTypes = map[Provider][]Type{
	ProviderSeedream: {TypeImage},
	ProviderSeedance: {TypeVideo},
	ProviderKling:    {TypeImage, TypeVideo},
	ProviderVidu:     {TypeVideo},
}

// Providers returns the providers able to generate t.
func Providers(t Type) []Provider {
	var out []Provider
	for _, p := range []Provider{ProviderSeedream, ProviderSeedance, ProviderKling, ProviderVidu} {
		if slices.Contains(providerTypes[p], t) {
			out = append(out, p)
		}
	}
	return out
}

// AspectRatios lists the accepted aspect ratios.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// Params is the generation request payload. The tracker treats it as opaque
// beyond the prompt; Validate is for the code that builds requests.
type Params struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Provider       Provider `json:"provider,omitempty"`
	Style          string   `json:"style,omitempty"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	// NumImages applies to image tasks.
	NumImages int `json:"num_images,omitempty"`
	// Duration (seconds), MotionStrength and ReferenceImage apply to video
	// tasks. ReferenceImage is optional.
	Duration       int     `json:"duration,omitempty"`
	MotionStrength float64 `json:"motion_strength,omitempty"`
	ReferenceImage string  `json:"reference_image,omitempty"`
}

// WithDefaults fills unset fields with the defaults for t.
func (p Params) WithDefaults(t Type) Params {
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Provider == "" {
		if t == TypeVideo {
			p.Provider = ProviderSeedance
		} else {
			p.Provider = ProviderSeedream
		}
	}
	switch t {
	case TypeImage:
		if p.AspectRatio == "" {
			p.AspectRatio = "1:1"
		}
		if p.NumImages == 0 {
			p.NumImages = 1
		}
	case TypeVideo:
		if p.AspectRatio == "" {
			p.AspectRatio = "16:9"
		}
		if p.Duration == 0 {
			p.Duration = 5
		}
	}
	return p
}

// Validate checks p against the ranges the providers accept for t.
func (p Params) Validate(t Type) error {
	const stage, op = "tasks", "validate params"
	invalid := func(format string, args ...any) error {
		return services.Wrap(services.ErrValidation, stage, op, fmt.Sprintf(format, args...), nil)
	}
	if !t.Valid() {
		return invalid("unknown task type %q", t)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return invalid("prompt is required")
	}
	if p.Provider != "" {
		types, ok := providerTypes[p.Provider]
		if !ok {
			return invalid("unknown provider %q", p.Provider)
		}
		if !slices.Contains(types, t) {
			return invalid("provider %s does not generate %s", p.Provider, t)
		}
	}
	if p.AspectRatio != "" && !slices.Contains(AspectRatios, p.AspectRatio) {
		return invalid("aspect ratio %q must be one of %s", p.AspectRatio, strings.Join(AspectRatios, ", "))
	}
	switch t {
	case TypeImage:
		if p.NumImages < 1 || p.NumImages > 4 {
			return invalid("num images must be between 1 and 4, got %d", p.NumImages)
		}
	case TypeVideo:
		if p.Duration != 5 && p.Duration != 10 {
			return invalid("duration must be 5 or 10 seconds, got %d", p.Duration)
		}
		if p.MotionStrength < 0 || p.MotionStrength > 1 {
			return invalid("motion strength must be between 0 and 1, got %g", p.MotionStrength)
		}
	}
	return nil
}

// cacheKey identifies requests that would produce the same result.
func cacheKey(t Type, p Params) string {
	encoded, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(append([]byte(string(t)+"\x00"), encoded...))
	return hex.EncodeToString(sum[:])
}
