package replicate

import (
	"fmt"
	"strings"
)

const (
	// qualitySuffix is appended to every prompt to push the model toward
	// polished interior shots.
	qualitySuffix = "best quality, extremely detailed, photo from Pinterest, interior, cinematic photo, ultra-detailed, ultra-realistic, award-winning"

	// negativePrompt suppresses the usual diffusion artifacts.
	negativePrompt = "longbody, lowres, bad anatomy, bad hands, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality"

	gamingRoomPrompt = "a room for gaming with gaming computers, gaming consoles, and gaming chairs"
)

// BuildPrompt derives the generation prompt from the selected theme and
// room. "Gaming Room" has its own fixed prompt; every other room is a
// templated phrase combining theme and room.
func BuildPrompt(theme, room string) string {
	base := gamingRoomPrompt
	if room != "Gaming Room" {
		base = fmt.Sprintf("a %s %s", strings.ToLower(theme), strings.ToLower(room))
	}
	return fmt.Sprintf("%s, %s", base, qualitySuffix)
}
