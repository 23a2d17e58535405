// Package catalog holds the fixed set of trackable prayer activities.
package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// Unit describes how an activity is measured.
type Unit string

const (
	UnitCount   Unit = "count"
	UnitMinutes Unit = "minutes"
)

// Glyph is the closed set of display variants a client can render for an activity.
type Glyph int

const (
	GlyphHeart Glyph = iota
	GlyphChurch
	GlyphBeads
	GlyphSun
	GlyphBook
	GlyphShield
	GlyphStar
	GlyphCross
	GlyphFlower
	GlyphClock
)

var glyphNames = [...]string{
	GlyphHeart:  "heart",
	GlyphChurch: "church",
	GlyphBeads:  "beads",
	GlyphSun:    "sun",
	GlyphBook:   "book",
	GlyphShield: "shield",
	GlyphStar:   "star",
	GlyphCross:  "cross",
	GlyphFlower: "flower",
	GlyphClock:  "clock",
}

func (g Glyph) String() string {
	if g < 0 || int(g) >= len(glyphNames) {
		return glyphNames[GlyphHeart]
	}
	return glyphNames[g]
}

// ActivityType is a build-time catalog entry.
type ActivityType struct {
	ID           int
	Name         string
	Unit         Unit
	DisplayOrder int
	Glyph        Glyph
}

// DefaultCooldownSeconds is the minimum interval between accepted submissions of one device.
const DefaultCooldownSeconds = 5

var activityTypes = []ActivityType{
	{ID: 1, Name: "Holy Mass", Unit: UnitCount, DisplayOrder: 1, Glyph: GlyphChurch},
	{ID: 2, Name: "Rosary", Unit: UnitCount, DisplayOrder: 2, Glyph: GlyphBeads},
	{ID: 3, Name: "Adoration", Unit: UnitMinutes, DisplayOrder: 3, Glyph: GlyphSun},
	{ID: 4, Name: "Word of God", Unit: UnitMinutes, DisplayOrder: 4, Glyph: GlyphBook},
	{ID: 5, Name: "Memorare", Unit: UnitCount, DisplayOrder: 5, Glyph: GlyphHeart},
	{ID: 6, Name: "Creed", Unit: UnitCount, DisplayOrder: 6, Glyph: GlyphShield},
	{ID: 7, Name: "Hail Mary", Unit: UnitCount, DisplayOrder: 7, Glyph: GlyphStar},
	{ID: 8, Name: "Way of the Cross", Unit: UnitCount, DisplayOrder: 8, Glyph: GlyphCross},
	{ID: 9, Name: "Novena of St. Joseph", Unit: UnitCount, DisplayOrder: 9, Glyph: GlyphFlower},
}

var byID = func() map[int]ActivityType {
	m := make(map[int]ActivityType, len(activityTypes))
	for _, at := range activityTypes {
		m[at.ID] = at
	}
	return m
}()

// All returns the catalog sorted by display order. The slice is a copy.
func All() []ActivityType {
	out := make([]ActivityType, len(activityTypes))
	copy(out, activityTypes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

// Lookup returns the activity type with the given id.
func Lookup(id int) (ActivityType, bool) {
	at, ok := byID[id]
	return at, ok
}

// Name returns the display name for id, or "Unknown".
func Name(id int) string {
	if at, ok := byID[id]; ok {
		return at.Name
	}
	return "Unknown"
}

// Resolve finds an activity type by numeric id or case-insensitive name.
func Resolve(ref string) (ActivityType, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return Lookup(id)
	}
	for _, at := range activityTypes {
		if strings.EqualFold(at.Name, ref) {
			return at, true
		}
	}
	return ActivityType{}, false
}

// Len reports the catalog size.
func Len() int { return len(activityTypes) }
