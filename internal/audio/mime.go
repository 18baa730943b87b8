package audio

import "strings"

// knownExtensions lists the audio extensions an artifact may carry,
// preferred order first.
var knownExtensions = []string{"webm", "wav", "mp3", "ogg", "m4a"}

// ExtensionForMIME infers the artifact extension from an upload
// content-type. Unknown types fall back to webm, the browser recorder
// default.
func ExtensionForMIME(contentType string) string {
	lowered := strings.ToLower(contentType)
	switch {
	case strings.Contains(lowered, "audio/wav"), strings.Contains(lowered, "audio/x-wav"):
		return "wav"
	case strings.Contains(lowered, "audio/mpeg"), strings.Contains(lowered, "audio/mp3"):
		return "mp3"
	case strings.Contains(lowered, "audio/ogg"):
		return "ogg"
	case strings.Contains(lowered, "audio/mp4"), strings.Contains(lowered, "audio/m4a"):
		return "m4a"
	default:
		return "webm"
	}
}

// MIMEForExtension returns the HTTP media type for an artifact extension.
func MIMEForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	case "m4a":
		return "audio/mp4"
	default:
		return "audio/webm"
	}
}
