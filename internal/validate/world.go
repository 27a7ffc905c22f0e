package validate

import (
	"effectcraft/internal/world"
)

// WorldSource is the slice of world access the checks need. *world.Memory
// and the persistent adapter both satisfy it.
type WorldSource interface {
	Actors() []*world.Actor
	Item(id string) *world.Item
}
