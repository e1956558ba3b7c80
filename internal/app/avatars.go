package app

import "math/rand"

// AvatarSeeds are handed to the rendering layer, which turns a seed into artwork
var AvatarSeeds = []string{
	// Animals
	"fox", "owl", "otter", "panda", "koala",
	"tiger", "falcon", "wolf", "panther", "dolphin",
	"octopus", "beetle", "penguin", "hedgehog", "lynx",

	// Objects
	"rocket", "compass", "lantern", "anchor", "hourglass",
	"crystal", "umbrella", "kite", "telescope", "violin",

	// Nature
	"cactus", "maple", "comet", "volcano", "glacier",
}

// RandomAvatar returns a random avatar seed
func RandomAvatar() string {
	return AvatarSeeds[rand.Intn(len(AvatarSeeds))]
}

// RandomAvatarExcluding returns a seed not already taken in the room when one is left
func RandomAvatarExcluding(taken []string) string {
	excludeMap := make(map[string]bool, len(taken))
	for _, a := range taken {
		excludeMap[a] = true
	}

	free := make([]string, 0, len(AvatarSeeds))
	for _, a := range AvatarSeeds {
		if !excludeMap[a] {
			free = append(free, a)
		}
	}
	if len(free) == 0 {
		return RandomAvatar()
	}
	return free[rand.Intn(len(free))]
}
