/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

// recovery phrase wordlist. Order matters: phrase derivation is deterministic over the
// word values, and membership is validated against this list.
// nolint:gochecknoglobals
var wordlist = []string{
	"acid", "actor", "agent", "album", "alley", "amber", "anchor", "angle",
	"ankle", "apple", "arena", "armor", "arrow", "aspen", "atlas", "autumn",
	"badge", "bagel", "banjo", "barn", "basil", "beacon", "berry", "birch",
	"bison", "blade", "blossom", "bolt", "border", "bottle", "branch", "brass",
	"brick", "bridge", "bronze", "brook", "bucket", "bugle", "butter", "cabin",
	"cable", "camel", "candle", "canoe", "canyon", "carbon", "cargo", "carpet",
	"castle", "cedar", "cellar", "chalk", "chapel", "cherry", "chisel", "cider",
	"circle", "citrus", "clover", "cobalt", "coffee", "comet", "copper", "coral",
	"cotton", "cradle", "crane", "crater", "cricket", "crystal", "cypress", "daisy",
	"dagger", "delta", "denim", "desert", "diesel", "dome", "donkey", "drum",
	"eagle", "easel", "echo", "elbow", "ember", "engine", "fabric", "falcon",
	"feather", "fern", "fiddle", "flint", "forest", "fossil", "fox", "frost",
	"garlic", "gazelle", "geyser", "ginger", "glacier", "goose", "granite", "grape",
	"gravel", "hammer", "harbor", "hazel", "heron", "hickory", "honey", "horizon",
	"igloo", "indigo", "iron", "island", "ivory", "jade", "jaguar", "jasmine",
	"jungle", "juniper", "kayak", "kettle", "kiwi", "ladder", "lagoon", "lantern",
	"laurel", "lava", "lemon", "lentil", "lilac", "lily", "lime", "linen",
	"lion", "lobster", "locust", "lotus", "lumber", "lunar", "magnet", "mango",
	"maple", "marble", "meadow", "melon", "mesa", "mint", "mirror", "monsoon",
	"morning", "mosaic", "moss", "mountain", "mulberry", "mustard", "nectar", "nickel",
	"north", "nutmeg", "oak", "oasis", "ocean", "olive", "onyx", "opal",
	"orbit", "orchid", "otter", "oyster", "paddle", "pagoda", "palm", "panda",
	"paper", "parrot", "peach", "pearl", "pebble", "pecan", "penguin", "pepper",
	"petal", "pigeon", "pine", "pistol", "planet", "plum", "pond", "poplar",
	"poppy", "prairie", "prism", "pumpkin", "quail", "quartz", "quill", "rabbit",
	"raft", "rain", "raisin", "raven", "reef", "ribbon", "ridge", "river",
	"robin", "rocket", "rose", "rubber", "ruby", "saddle", "saffron", "sage",
	"salmon", "sandal", "sapphire", "satin", "shadow", "shell", "silver", "sketch",
	"slate", "sparrow", "spice", "spruce", "squash", "stone", "storm", "summit",
	"sunset", "swan", "tangerine", "temple", "thistle", "thunder", "tiger", "timber",
	"topaz", "torch", "trout", "tulip", "tundra", "turtle", "valley", "vanilla",
	"velvet", "vine", "violet", "walnut", "walrus", "wheat", "willow", "zephyr",
}

// nolint:gochecknoglobals
var wordIndex = func() map[string]struct{} {
	m := make(map[string]struct{}, len(wordlist))
	for _, w := range wordlist {
		m[w] = struct{}{}
	}

	return m
}()
