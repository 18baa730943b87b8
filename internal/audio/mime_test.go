package audio

import "testing"

func TestExtensionForMIME(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"audio/webm", "webm"},
		{"audio/webm;codecs=opus", "webm"},
		{"audio/wav", "wav"},
		{"audio/x-wav", "wav"},
		{"audio/mpeg", "mp3"},
		{"audio/ogg", "ogg"},
		{"audio/mp4", "m4a"},
		{"", "webm"},
		{"application/octet-stream", "webm"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := ExtensionForMIME(tt.contentType); got != tt.want {
				t.Errorf("ExtensionForMIME(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestMIMEForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"webm", "audio/webm"},
		{".webm", "audio/webm"},
		{"wav", "audio/wav"},
		{"mp3", "audio/mpeg"},
		{"ogg", "audio/ogg"},
		{"m4a", "audio/mp4"},
		{"xyz", "audio/webm"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := MIMEForExtension(tt.ext); got != tt.want {
				t.Errorf("MIMEForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}
