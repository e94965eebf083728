package platform

import "strings"

// Platform is the closed set of social networks a post can target.
// Unknown platform strings are rejected at creation time instead of falling
// through to a default at dispatch time.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Capabilities describes what a platform accepts. The dispatcher and the AI
// content helpers consult it instead of switching on raw strings.
type Capabilities struct {
	Label         string `json:"label"`
	MaxChars      int    `json:"max_chars"`
	SupportsMedia bool   `json:"supports_media"`
	MaxMedia      int    `json:"max_media"`
	RequiresMedia bool   `json:"requires_media"`
}

var capabilities = map[Platform]Capabilities{
	PlatformTwitter:   {Label: "Twitter", MaxChars: 280, SupportsMedia: true, MaxMedia: 4},
	PlatformLinkedIn:  {Label: "LinkedIn", MaxChars: 3000, SupportsMedia: true, MaxMedia: 9},
	PlatformFacebook:  {Label: "Facebook", MaxChars: 63206, SupportsMedia: true, MaxMedia: 10},
	PlatformInstagram: {Label: "Instagram", MaxChars: 2200, SupportsMedia: true, MaxMedia: 10, RequiresMedia: true},
}

// Parse normalizes a raw platform string. The second return is false for
// anything outside the supported set.
func Parse(raw string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := capabilities[p]
	return p, ok
}

// CapabilitiesOf returns the capability entry for a known platform.
func CapabilitiesOf(p Platform) (Capabilities, bool) {
	c, ok := capabilities[p]
	return c, ok
}

// All returns the supported platforms in stable order.
func All() []Platform {
	return []Platform{PlatformTwitter, PlatformLinkedIn, PlatformFacebook, PlatformInstagram}
}

func (p Platform) String() string { return string(p) }
