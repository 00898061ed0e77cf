package provider

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const maxRandomUsername = 7

var (
	adjectives = []string{"swift", "quick", "silent", "bright", "calm", "daring", "eager", "fair"}
	nouns      = []string{"lion", "eagle", "river", "moon", "star", "ocean", "forest", "mountain"}
)

// RandomUsername builds an adjective+noun+number local part, cut to 7 characters
func RandomUsername() string {
	name := fmt.Sprintf("%s%s%d",
		adjectives[rand.Intn(len(adjectives))],
		nouns[rand.Intn(len(nouns))],
		rand.Intn(100),
	)
	if len(name) > maxRandomUsername {
		name = name[:maxRandomUsername]
	}
	return name
}

func randomPassword() string {
	return "P@" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
