package profile

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

const (
	// AvatarFilename is the file name given to generated avatars
	AvatarFilename = "avatar.svg"

	// AvatarContentType is the content type of generated avatars
	AvatarContentType = "image/svg+xml"
)

// Initials returns the upper-cased first letter of each name
func Initials(firstName, lastName string) string {
	return strings.ToUpper(firstRune(firstName) + firstRune(lastName))
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}

// AvatarColor derives a stable hsl() color from initials. The hash runs over UTF-16
// code units with 32-bit shifts and the hue keeps the sign of the hash, so the same
// initials get the same color the browser client computes.
func AvatarColor(initials string) string {
	var hash int64
	for _, c := range utf16.Encode([]rune(initials)) {
		shifted := int64(int32(hash) << 5)
		hash = int64(c) + (shifted - hash)
	}
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", hash%360)
}

// GenerateAvatar renders a 100x100 SVG circle in color with the initials centered on it
func GenerateAvatar(initials, color string) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">
  <circle cx="50" cy="50" r="50" fill="%s" />
  <text x="50" y="50" font-family="Arial" font-size="36" font-weight="bold" fill="white" text-anchor="middle" dominant-baseline="central">%s</text>
</svg>
`, html.EscapeString(color), html.EscapeString(initials)))
}
