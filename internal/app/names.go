package app

import (
	"fmt"
	"math/rand/v2"
)

var nameAdjectives = []string{
	"Brave", "Clever", "Curious", "Daring", "Eager", "Fuzzy", "Gentle", "Happy",
	"Jolly", "Keen", "Lucky", "Mighty", "Nimble", "Plucky", "Quick", "Quiet",
	"Rapid", "Sly", "Sunny", "Witty", "Zany", "Bold", "Cosmic", "Dapper",
}

var nameAnimals = []string{
	"Badger", "Otter", "Falcon", "Panda", "Koala", "Lynx", "Moose", "Narwhal",
	"Ocelot", "Penguin", "Quokka", "Raccoon", "Salmon", "Tapir", "Walrus", "Yak",
	"Heron", "Gecko", "Ferret", "Dingo", "Coyote", "Bison", "Alpaca", "Puffin",
}

// NameGenerator produces default display names.
type NameGenerator func() string

// RandomName returns names like "Plucky Otter 42". Collisions are possible but rare.
func RandomName() string {
	return fmt.Sprintf("%s %s %d",
		nameAdjectives[rand.IntN(len(nameAdjectives))],
		nameAnimals[rand.IntN(len(nameAnimals))],
		rand.IntN(100),
	)
}
