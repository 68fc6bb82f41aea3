package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBlockedMedia(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/photo.png", true},
		{"https://example.com/img/PHOTO.JPG", true},
		{"https://example.com/a.jpeg?w=200", true},
		{"https://example.com/logo.svg#icon", true},
		{"https://cdn.example.com/clip.webm", true},
		{"https://example.com/track.flac", true},
		{"photo.gif", true},
		{"https://example.com/page.html", false},
		{"https://example.com/app.js", false},
		{"https://example.com/style.css", false},
		{"https://example.com/png", false},
		{"https://example.com/view?file=photo.png", false},
		{"https://example.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			require.Equal(t, tt.want, IsBlockedMedia(tt.url))
		})
	}
}
