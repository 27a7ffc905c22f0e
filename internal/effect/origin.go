package effect

import (
	"strconv"
	"strings"

	"effectcraft/internal/world"
)

// Origin is a parsed provenance chain: a root entity followed by zero or
// more collection hops. The host writes two shapes, the legacy owned-item
// pair Actor.<id>.OwnedItem.<id> and the general chain
// <Type>.<id>(.<collection>.<id>)*; both parse to the same form.
type Origin struct {
	Kind string
	ID   string
	Hops []OriginHop
}

type OriginHop struct {
	Collection string
	ID         string
}

// ParseOrigin parses an origin string. Odd-length or empty chains are
// rejected with ok=false rather than a partial result.
func ParseOrigin(origin string) (Origin, bool) {
	parts := strings.Split(origin, ".")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return Origin{}, false
	}
	for _, part := range parts {
		if part == "" {
			return Origin{}, false
		}
	}
	parsed := Origin{Kind: parts[0], ID: parts[1]}
	for i := 2; i < len(parts); i += 2 {
		parsed.Hops = append(parsed.Hops, OriginHop{Collection: parts[i], ID: parts[i+1]})
	}
	return parsed, true
}

// ItemID returns the owned-item id when the origin's last hop is an
// owned-item collection.
func (o Origin) ItemID() (string, bool) {
	if len(o.Hops) == 0 {
		return "", false
	}
	last := o.Hops[len(o.Hops)-1]
	if last.Collection != "OwnedItem" && last.Collection != "Item" {
		return "", false
	}
	return last.ID, true
}

// SourceItem resolves the item an effect originated from. The actor's own
// copy wins over the directory item of the same id: the owned copy carries
// the state the effect was created against.
func (w *Wrapped) SourceItem() *world.Item {
	record, err := w.record()
	if err != nil || record == nil || record.Origin == "" {
		return nil
	}
	origin, ok := ParseOrigin(record.Origin)
	if !ok {
		return nil
	}

	itemID, ok := origin.ItemID()
	if !ok {
		if origin.Kind == world.KindItem && len(origin.Hops) == 0 {
			itemID = origin.ID
		} else {
			return nil
		}
	}

	if actor, _, err := w.parentEntities(); err == nil && actor != nil {
		if item := actor.Item(itemID); item != nil {
			return item
		}
	}
	if origin.Kind == world.KindActor && len(origin.Hops) > 0 {
		if actor := w.r.World.Actor(origin.ID); actor != nil {
			if item := actor.Item(itemID); item != nil {
				return item
			}
		}
	}
	return w.r.World.Item(itemID)
}

// ProvenanceKey is the value stamped onto a granted item's flags so the
// reconciler can trace it back to the effect and grant that produced it.
func ProvenanceKey(effectID string, grantID int) string {
	return effectID + "." + strconv.Itoa(grantID)
}

// SplitProvenance splits a provenance key back into effect id and grant
// id. Effect ids may themselves contain dots, so the split is on the last
// one.
func SplitProvenance(key string) (effectID string, grantID int, ok bool) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", 0, false
	}
	id, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], id, true
}
