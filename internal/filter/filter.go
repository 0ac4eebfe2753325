// Package filter builds predicates over image metadata records.
//
// A Builder accumulates inclusion and exclusion constraints per metadata
// field and compiles them into Predicate values. Constraint sets can be
// evaluated either conjunctively or disjunctively, that is: a record must
// satisfy all constraints in the set or only some.
//
// Be careful with the logic intricacies caused by disjunctive sets.
package filter

import "pictag/internal/meta"

// Match is a single constraint target: either a concrete field value or
// the absence of the field. The zero Match targets the empty string.
type Match struct {
	value  string
	absent bool
}

// Value returns a Match targeting a concrete field value.
func Value(s string) Match { return Match{value: s} }

// Absent returns a Match targeting a field with no value at all.
func Absent() Match { return Match{absent: true} }

type field int

const (
	fieldID field = iota
	fieldFilename
	fieldAuthor
	fieldUniverse
	fieldCharacters
	fieldTags
)

// constraintSet accumulates the matches recorded against one field.
// Constraints can only be added, never withdrawn.
type constraintSet struct {
	included    map[Match]struct{}
	excluded    map[Match]struct{}
	disjunctive bool
}

func newConstraintSet(disjunctive bool) *constraintSet {
	return &constraintSet{
		included:    make(map[Match]struct{}),
		excluded:    make(map[Match]struct{}),
		disjunctive: disjunctive,
	}
}

func (cs *constraintSet) add(m Match, exclude bool) {
	if exclude {
		cs.excluded[m] = struct{}{}
	} else {
		cs.included[m] = struct{}{}
	}
}

// Builder collects constraints and produces compiled predicates.
// Constraint methods return the Builder itself so calls can be chained.
type Builder struct {
	sets map[field]*constraintSet
}

// NewBuilder returns a Builder with no constraints. The single-valued
// fields (id, filename, author, universe) start disjunctive; characters
// and tags start conjunctive and can be toggled per field.
func NewBuilder() *Builder {
	return &Builder{sets: map[field]*constraintSet{
		fieldID:         newConstraintSet(true),
		fieldFilename:   newConstraintSet(true),
		fieldAuthor:     newConstraintSet(true),
		fieldUniverse:   newConstraintSet(true),
		fieldCharacters: newConstraintSet(false),
		fieldTags:       newConstraintSet(false),
	}}
}

// IDConstraint records a constraint on the record ID.
func (b *Builder) IDConstraint(id string, exclude bool) *Builder {
	b.sets[fieldID].add(Value(id), exclude)
	return b
}

// FilenameConstraint records a constraint on the image file name.
func (b *Builder) FilenameConstraint(name string, exclude bool) *Builder {
	b.sets[fieldFilename].add(Value(name), exclude)
	return b
}

// AuthorConstraint records a constraint on the author field.
func (b *Builder) AuthorConstraint(m Match, exclude bool) *Builder {
	b.sets[fieldAuthor].add(m, exclude)
	return b
}

// UniverseConstraint records a constraint on the universe field.
func (b *Builder) UniverseConstraint(m Match, exclude bool) *Builder {
	b.sets[fieldUniverse].add(m, exclude)
	return b
}

// CharacterConstraint records a constraint on the character list.
func (b *Builder) CharacterConstraint(m Match, exclude bool) *Builder {
	b.sets[fieldCharacters].add(m, exclude)
	return b
}

// TagConstraint records a constraint on the tag list.
func (b *Builder) TagConstraint(m Match, exclude bool) *Builder {
	b.sets[fieldTags].add(m, exclude)
	return b
}

// CharactersDisjunctive switches character constraints between conjunctive
// and disjunctive evaluation.
func (b *Builder) CharactersDisjunctive(flag bool) *Builder {
	b.sets[fieldCharacters].disjunctive = flag
	return b
}

// TagsDisjunctive switches tag constraints between conjunctive and
// disjunctive evaluation.
func (b *Builder) TagsDisjunctive(flag bool) *Builder {
	b.sets[fieldTags].disjunctive = flag
	return b
}

// IDFilter compiles the predicate for the record ID.
func (b *Builder) IDFilter() Predicate { return b.compile(fieldID) }

// FilenameFilter compiles the predicate for the image file name.
func (b *Builder) FilenameFilter() Predicate { return b.compile(fieldFilename) }

// AuthorFilter compiles the predicate for the author field.
func (b *Builder) AuthorFilter() Predicate { return b.compile(fieldAuthor) }

// UniverseFilter compiles the predicate for the universe field.
func (b *Builder) UniverseFilter() Predicate { return b.compile(fieldUniverse) }

// CharacterFilter compiles the predicate for the character list.
func (b *Builder) CharacterFilter() Predicate { return b.compile(fieldCharacters) }

// TagFilter compiles the predicate for the tag list.
func (b *Builder) TagFilter() Predicate { return b.compile(fieldTags) }

// AllFilters compiles the author, universe, character and tag predicates,
// in that order, for bulk evaluation.
func (b *Builder) AllFilters() []Predicate {
	return []Predicate{b.AuthorFilter(), b.UniverseFilter(), b.CharacterFilter(), b.TagFilter()}
}

// compile snapshots one field's constraint set into a predicate. The
// copies keep the predicate stable even if the builder accumulates more
// constraints afterwards.
func (b *Builder) compile(f field) Predicate {
	cs := b.sets[f]
	p := Predicate{
		field:       f,
		multi:       f == fieldCharacters || f == fieldTags,
		included:    make(map[Match]struct{}, len(cs.included)),
		excluded:    make(map[Match]struct{}, len(cs.excluded)),
		disjunctive: cs.disjunctive,
	}
	for m := range cs.included {
		p.included[m] = struct{}{}
	}
	for m := range cs.excluded {
		p.excluded[m] = struct{}{}
	}
	return p
}

// Predicate is a compiled filter over one metadata field, carrying its own
// included and excluded sets and evaluation mode.
type Predicate struct {
	field       field
	multi       bool
	included    map[Match]struct{}
	excluded    map[Match]struct{}
	disjunctive bool
}

// Evaluate reports whether a record satisfies the predicate.
func (p Predicate) Evaluate(rec meta.Record) bool {
	if p.multi {
		return p.evaluateMulti(rec)
	}
	return p.evaluateSingle(rec)
}

// evaluateSingle handles the fields holding exactly one value per record.
// Exclusions, when present, eclipse any accumulated inclusions entirely.
func (p Predicate) evaluateSingle(rec meta.Record) bool {
	value := singleValue(p.field, rec)
	if len(p.excluded) > 0 {
		_, hit := p.excluded[value]
		return !hit
	}
	if len(p.included) > 0 {
		_, hit := p.included[value]
		return hit
	}
	// No constraints recorded: match anything.
	return true
}

// evaluateMulti handles the list-valued fields. A record with no values is
// treated as holding the single absence marker, so absence itself can be
// matched.
//
// In disjunctive mode a record passes when it holds some included value OR
// lacks at least one excluded value. With several exclusions recorded this
// means a record keeps passing as long as any one of them is missing from
// it, even if the others are present.
func (p Predicate) evaluateMulti(rec meta.Record) bool {
	if len(p.included) == 0 && len(p.excluded) == 0 {
		return true
	}
	values := multiValues(p.field, rec)
	if p.disjunctive {
		return intersects(values, p.included) || !containsAll(values, p.excluded)
	}
	return containsAll(values, p.included) && !intersects(values, p.excluded)
}

// singleValue extracts the match target a record presents for a
// single-valued field.
func singleValue(f field, rec meta.Record) Match {
	switch f {
	case fieldID:
		return Value(rec.ID.String())
	case fieldFilename:
		return Value(rec.Filename())
	case fieldAuthor:
		return optValue(rec.Author)
	case fieldUniverse:
		return optValue(rec.Universe)
	}
	return Absent()
}

func optValue(s *string) Match {
	if s == nil {
		return Absent()
	}
	return Value(*s)
}

// multiValues collects the match targets a record presents for a
// list-valued field, wrapping an empty list as the absence marker.
func multiValues(f field, rec meta.Record) map[Match]struct{} {
	var items []string
	switch f {
	case fieldCharacters:
		items = rec.Characters
	case fieldTags:
		items = rec.Tags
	}
	values := make(map[Match]struct{}, len(items)+1)
	if len(items) == 0 {
		values[Absent()] = struct{}{}
		return values
	}
	for _, item := range items {
		values[Value(item)] = struct{}{}
	}
	return values
}

// intersects reports whether any entry of set appears among values.
func intersects(values, set map[Match]struct{}) bool {
	for m := range set {
		if _, ok := values[m]; ok {
			return true
		}
	}
	return false
}

// containsAll reports whether every entry of set appears among values.
// An empty set is trivially contained.
func containsAll(values, set map[Match]struct{}) bool {
	for m := range set {
		if _, ok := values[m]; !ok {
			return false
		}
	}
	return true
}
