package parser

import (
	"fmt"
	"sort"
	"strings"
)

// Disposition says what downstream consumers should do with a game object's
// grp id.
type Disposition int

const (
	// DispositionSkip excludes engine-internal objects from all downstream
	// tables.
	DispositionSkip Disposition = iota

	// DispositionRealCard means the grp id must be resolved against the
	// external card database; a miss gets a deterministic placeholder.
	DispositionRealCard

	// DispositionGeneratedName means the object is a token or emblem whose
	// name is synthesized from game state; never looked up externally.
	DispositionGeneratedName

	// DispositionSpecialFace means an adventure half, MDFC back, room half
	// or omen: external lookup first, bracketed placeholder on a miss.
	DispositionSpecialFace
)

func (d Disposition) String() string {
	switch d {
	case DispositionSkip:
		return "skip"
	case DispositionRealCard:
		return "real_card"
	case DispositionGeneratedName:
		return "generated_name"
	case DispositionSpecialFace:
		return "special_face"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

const (
	objectTypeCard  = "GameObjectType_Card"
	objectTypeToken = "GameObjectType_Token"
	objectTypeOmen  = "GameObjectType_Omen"

	// ObjectTypeEmblem is exported for the emblem naming rule.
	ObjectTypeEmblem = "GameObjectType_Emblem"
)

// Engine-internal object types: trigger holders, abilities on the stack and
// revealed-card shims never represent a physical card.
var skipObjectTypes = map[string]struct{}{
	"GameObjectType_TriggerHolder": {},
	"GameObjectType_Ability":       {},
	"GameObjectType_RevealedCard":  {},
}

var tokenObjectTypes = map[string]struct{}{
	objectTypeToken:  {},
	ObjectTypeEmblem: {},
}

// Named card faces sharing an Arena id with a parent printing.
var specialFaceTypes = map[string]struct{}{
	"GameObjectType_Adventure": {},
	"GameObjectType_MDFCBack":  {},
	"GameObjectType_Room":      {},
	"GameObjectType_SplitCard": {},
	objectTypeOmen:             {},
}

var colorLabels = map[string]string{
	"CardColor_White": "White",
	"CardColor_Blue":  "Blue",
	"CardColor_Black": "Black",
	"CardColor_Red":   "Red",
	"CardColor_Green": "Green",
}

var cardTypeLabels = map[string]string{
	"CardType_Creature":     "Creature",
	"CardType_Artifact":     "Artifact",
	"CardType_Enchantment":  "Enchantment",
	"CardType_Land":         "Land",
	"CardType_Planeswalker": "Planeswalker",
	"CardType_Instant":      "Instant",
	"CardType_Sorcery":      "Sorcery",
}

// Classification is the classifier's verdict on one game object.
type Classification struct {
	GrpID       int
	Disposition Disposition
	ObjectType  string

	// Name is the synthesized display name for GeneratedName dispositions,
	// empty otherwise.
	Name string

	// IsToken is true only for GeneratedName dispositions.
	IsToken bool

	// SourceGrpID links tokens and emblems to their creator card and omens
	// to their paired front face. Zero when there is no source.
	SourceGrpID int

	// Unrecognized marks an object type outside the known Arena set,
	// treated as Skip; callers should log a warning.
	Unrecognized bool
}

// Classify decides the disposition of one game object. Pure function: no
// I/O, no lookups. Objects without a grp id are always skipped.
func Classify(obj GameObjectRecord) Classification {
	c := Classification{GrpID: obj.GrpID, ObjectType: obj.Type}
	if obj.GrpID == 0 {
		c.Disposition = DispositionSkip
		return c
	}
	if _, ok := skipObjectTypes[obj.Type]; ok {
		c.Disposition = DispositionSkip
		return c
	}
	if obj.Type == objectTypeCard {
		c.Disposition = DispositionRealCard
		return c
	}
	if _, ok := tokenObjectTypes[obj.Type]; ok {
		c.Disposition = DispositionGeneratedName
		c.Name = GenerateTokenName(obj)
		c.IsToken = true
		c.SourceGrpID = obj.SourceGrpID
		return c
	}
	if _, ok := specialFaceTypes[obj.Type]; ok {
		c.Disposition = DispositionSpecialFace
		c.SourceGrpID = obj.SourceGrpID
		if obj.Type == objectTypeOmen {
			// Omen back faces share their Arena id with the front-face
			// spell printed one id earlier.
			c.SourceGrpID = obj.GrpID - 1
		}
		return c
	}

	c.Disposition = DispositionSkip
	c.Unrecognized = true
	return c
}

// GenerateTokenName builds a display name for a token from its game-state
// attributes, e.g. "1/1 Red Goblin Creature Token". Emblems are always
// named exactly "Emblem".
func GenerateTokenName(obj GameObjectRecord) string {
	if obj.Type == ObjectTypeEmblem {
		return "Emblem"
	}

	var parts []string
	if obj.Power != nil && obj.Toughness != nil {
		parts = append(parts, fmt.Sprintf("%d/%d", *obj.Power, *obj.Toughness))
	}
	for _, color := range obj.Colors {
		if label, ok := colorLabels[color]; ok {
			parts = append(parts, label)
		} else {
			parts = append(parts, color)
		}
	}
	for _, subtype := range obj.Subtypes {
		parts = append(parts, strings.TrimPrefix(subtype, "SubType_"))
	}
	for _, cardType := range obj.CardTypes {
		if label, ok := cardTypeLabels[cardType]; ok {
			parts = append(parts, label)
		} else {
			parts = append(parts, strings.TrimPrefix(cardType, "CardType_"))
		}
	}
	parts = append(parts, "Token")
	return strings.Join(parts, " ")
}

// PlaceholderName is the deterministic fallback for a real card the card
// database could not resolve.
func PlaceholderName(grpID int) string {
	return fmt.Sprintf("Unknown Card (%d)", grpID)
}

// SpecialFacePlaceholderName is the fallback for special faces missing from
// the card database, e.g. "[Adventure] (12345)".
func SpecialFacePlaceholderName(objectType string, grpID int) string {
	label := strings.TrimPrefix(objectType, "GameObjectType_")
	if label == "" {
		label = "Unknown"
	}
	return fmt.Sprintf("[%s] (%d)", label, grpID)
}

// ReferenceSet partitions every grp id a match references by disposition,
// ready for the storage layer to resolve against its card table.
type ReferenceSet struct {
	RealCards    map[int]struct{}
	Special      map[int]Classification // tokens, emblems and special faces
	Skipped      map[int]struct{}
	Unrecognized []int
}

// LookupIDs returns the sorted grp ids that should be sent to the external
// card database in one batched request: every real card plus the special
// faces (tokens and emblems are never looked up).
func (r ReferenceSet) LookupIDs() []int {
	ids := make([]int, 0, len(r.RealCards)+len(r.Special))
	for id := range r.RealCards {
		ids = append(ids, id)
	}
	for id, c := range r.Special {
		if c.Disposition == DispositionSpecialFace {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// CollectReferences classifies every object the match saw plus its deck list
// and action targets. Re-classification is last-type-wins per grp id: a card
// sighting upgrades an earlier special sighting, and an omen sighting
// overrides a card sighting no matter the order.
func CollectReferences(m *MatchRecord) ReferenceSet {
	refs := ReferenceSet{
		RealCards: make(map[int]struct{}),
		Special:   make(map[int]Classification),
		Skipped:   make(map[int]struct{}),
	}

	for _, card := range m.DeckCards {
		if card.CardID != 0 {
			refs.RealCards[card.CardID] = struct{}{}
		}
	}

	// Iterate the object table in instance order so the first-wins rule for
	// special objects is deterministic.
	instanceIDs := make([]int, 0, len(m.GameObjects))
	for id := range m.GameObjects {
		instanceIDs = append(instanceIDs, id)
	}
	sort.Ints(instanceIDs)

	for _, instanceID := range instanceIDs {
		obj := m.GameObjects[instanceID]
		c := Classify(obj)
		switch {
		case c.GrpID == 0:
			// Nothing to reference.
		case c.Unrecognized:
			refs.Unrecognized = append(refs.Unrecognized, c.GrpID)
			refs.Skipped[c.GrpID] = struct{}{}
		case c.Disposition == DispositionSkip:
			refs.Skipped[c.GrpID] = struct{}{}
		case c.Disposition == DispositionRealCard:
			refs.RealCards[c.GrpID] = struct{}{}
			delete(refs.Special, c.GrpID)
		case c.ObjectType == objectTypeOmen:
			// The front face is processed as a card first; the omen's true
			// type overrides it.
			delete(refs.RealCards, c.GrpID)
			refs.Special[c.GrpID] = c
		default:
			if _, real := refs.RealCards[c.GrpID]; !real {
				if _, seen := refs.Special[c.GrpID]; !seen {
					refs.Special[c.GrpID] = c
				}
			}
		}
	}

	// Actions can reference grp ids never captured as game objects.
	for _, action := range m.Actions {
		if action.CardGrpID == 0 {
			continue
		}
		if _, special := refs.Special[action.CardGrpID]; !special {
			refs.RealCards[action.CardGrpID] = struct{}{}
		}
	}

	return refs
}
