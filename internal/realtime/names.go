package realtime

import (
	"fmt"
	"math/rand"
)

var nameAdjectives = []string{
	"Amber", "Bold", "Brisk", "Calm", "Clever", "Cosmic", "Daring", "Eager",
	"Fuzzy", "Gentle", "Golden", "Happy", "Jolly", "Keen", "Lively", "Lucky",
	"Mellow", "Nimble", "Polite", "Quick", "Quiet", "Rapid", "Silver", "Sly",
	"Sunny", "Swift", "Tidy", "Vivid", "Witty", "Zesty",
}

var nameNouns = []string{
	"Badger", "Bison", "Comet", "Condor", "Coyote", "Crane", "Dolphin",
	"Falcon", "Ferret", "Fox", "Gecko", "Heron", "Ibis", "Jackal", "Koala",
	"Lemur", "Lynx", "Marmot", "Mole", "Otter", "Owl", "Panda", "Puffin",
	"Raven", "Seal", "Sparrow", "Stork", "Tapir", "Walrus", "Wombat",
}

// RandomDisplayName mints a friendly handle like "SwiftOtter42" for
// participants who join without giving a name. Uniqueness is not required,
// only low collision odds within one presentation.
func RandomDisplayName() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return fmt.Sprintf("%s%s%02d", adj, noun, rand.Intn(100))
}
