package chat

import (
	"fmt"

	"github.com/stepline/stepline/internal/core/data"
)

// Chat color markup understood by the client: |c0RRGGBB switches the text
// color until the next marker.
const (
	defaultColor = "00aa00"
	resetColor   = "ffffff"
	errorColor   = "ff0000"
)

// WithColor wraps text in color markup, using the default highlight color
// unless one is given.
func WithColor(text string, color ...string) string {
	c := defaultColor
	if len(color) > 0 {
		c = color[0]
	}
	return fmt.Sprintf("|c0%s%s|c0%s", c, text, resetColor)
}

var rankColors = []struct {
	minRank int
	color   string
}{
	{10, "ff0000"},
	{5, "ffaa00"},
	{1, "aa00ff"},
	{0, "00aaff"},
}

// ColoredName renders a user's name with their rank color.
func ColoredName(user *data.User) string {
	for _, rc := range rankColors {
		if user.Rank >= rc.minRank {
			return WithColor(user.Name, rc.color)
		}
	}
	return WithColor(user.Name, rankColors[len(rankColors)-1].color)
}
