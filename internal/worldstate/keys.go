package worldstate

import "strconv"

// Keys describing the agent itself.
const (
	SelfIDKey       = "self_id"
	SelfLocationKey = "self_location"
)

// LocationKey is the predicate holding the believed location of an entity.
func LocationKey(entityID int64) string {
	return "location_" + strconv.FormatInt(entityID, 10)
}

// TypeKey is the predicate holding the entity type of an entity.
func TypeKey(entityID int64) string {
	return "type_" + strconv.FormatInt(entityID, 10)
}

// StateKey is the predicate holding one property of an entity.
func StateKey(entityID int64, key string) string {
	return "state_" + strconv.FormatInt(entityID, 10) + "_" + key
}

// TagKey marks an entity as carrying a tag.
func TagKey(entityID int64, tag string) string {
	return "tag_" + strconv.FormatInt(entityID, 10) + "_" + tag
}

// ItemKey is the predicate holding how many of item an entity holds.
func ItemKey(entityID int64, item string) string {
	return "item_" + strconv.FormatInt(entityID, 10) + "_" + item
}

// HasItemKey marks the agent as holding at least one of item.
func HasItemKey(item string) string { return "has_item_" + item }

// ItemCountKey is the agent's inventory count of item.
func ItemCountKey(item string) string { return "item_count_" + item }

// NeedKey is the agent's level of a need, 0 (unmet) to 1 (satisfied).
func NeedKey(need string) string { return "need_" + need }

// TraitKey is the agent's level of a personality trait.
func TraitKey(trait string) string { return "trait_" + trait }

// SelfTagKey marks the agent as carrying a tag.
func SelfTagKey(tag string) string { return "has_tag_" + tag }

// TagStrengthKey is the strength of a tag the agent carries.
func TagStrengthKey(tag string) string { return "tag_strength_" + tag }
