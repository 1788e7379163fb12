package merge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/liftlog/internal/domain"
)

// Choice selects which side of a conflict wins.
type Choice string

const (
	UseLocal  Choice = "local"
	UseRemote Choice = "remote"
)

func (c Choice) valid() bool {
	return c == UseLocal || c == UseRemote
}

// Key identifies one field of one record.
type Key struct {
	EntityType domain.EntityType
	ID         string
	Field      string
}

// Decisions resolves conflicts. A per-conflict choice beats the per-type
// group choice.
type Decisions struct {
	fields map[Key]Choice
	groups map[domain.EntityType]Choice
}

// NewDecisions returns an empty set of decisions.
func NewDecisions() *Decisions {
	return &Decisions{
		fields: make(map[Key]Choice),
		groups: make(map[domain.EntityType]Choice),
	}
}

// AllLocal keeps the local value for every conflict.
func AllLocal() *Decisions {
	d := NewDecisions()
	for _, e := range domain.EntityTypes {
		d.UseAllLocal(e)
	}
	return d
}

// AllRemote takes the incoming value for every conflict.
func AllRemote() *Decisions {
	d := NewDecisions()
	for _, e := range domain.EntityTypes {
		d.UseAllRemote(e)
	}
	return d
}

// UseLocal keeps the local value of one field.
func (d *Decisions) UseLocal(entity domain.EntityType, id, field string) *Decisions {
	d.fields[Key{entity, id, field}] = UseLocal
	return d
}

// UseRemote takes the incoming value of one field.
func (d *Decisions) UseRemote(entity domain.EntityType, id, field string) *Decisions {
	d.fields[Key{entity, id, field}] = UseRemote
	return d
}

// UseAllLocal keeps local values for every conflict of one record type.
func (d *Decisions) UseAllLocal(entity domain.EntityType) *Decisions {
	d.groups[entity] = UseLocal
	return d
}

// UseAllRemote takes incoming values for every conflict of one record type.
func (d *Decisions) UseAllRemote(entity domain.EntityType) *Decisions {
	d.groups[entity] = UseRemote
	return d
}

// Resolve returns the choice for c, if one was made.
func (d *Decisions) Resolve(c Conflict) (Choice, bool) {
	if d == nil {
		return "", false
	}
	if ch, ok := d.fields[Key{c.EntityType, c.ID, c.Field}]; ok {
		return ch, true
	}
	ch, ok := d.groups[c.EntityType]
	return ch, ok
}

// Unresolved returns the part of r that d does not settle.
func (d *Decisions) Unresolved(r Report) Report {
	var out Report
	for _, e := range r.Entities {
		var open []Conflict
		for _, c := range e.Conflicts {
			if _, ok := d.Resolve(c); !ok {
				open = append(open, c)
			}
		}
		if len(open) > 0 {
			out.Entities = append(out.Entities, EntityReport{EntityType: e.EntityType, Conflicts: open})
		}
	}
	return out
}

// decisionsFile is the YAML shape of a decisions file:
//
//	groups:
//	  Exercise: local
//	conflicts:
//	  - entity: Plan
//	    id: P1
//	    field: name
//	    use: remote
type decisionsFile struct {
	Groups    map[string]Choice `yaml:"groups"`
	Conflicts []struct {
		Entity string `yaml:"entity"`
		ID     string `yaml:"id"`
		Field  string `yaml:"field"`
		Use    Choice `yaml:"use"`
	} `yaml:"conflicts"`
}

// ParseDecisions reads a decisions document. Unknown keys, unknown entity
// types and choices other than local or remote are rejected.
func ParseDecisions(r io.Reader) (*Decisions, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f decisionsFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse decisions: %w", err)
	}

	d := NewDecisions()
	for name, ch := range f.Groups {
		entity, err := entityType(name)
		if err != nil {
			return nil, err
		}
		if !ch.valid() {
			return nil, fmt.Errorf("parse decisions: group %s: invalid choice %q", name, ch)
		}
		d.groups[entity] = ch
	}
	for i, c := range f.Conflicts {
		entity, err := entityType(c.Entity)
		if err != nil {
			return nil, err
		}
		if c.ID == "" || c.Field == "" {
			return nil, fmt.Errorf("parse decisions: conflict %d: id and field are required", i)
		}
		if !c.Use.valid() {
			return nil, fmt.Errorf("parse decisions: conflict %d: invalid choice %q", i, c.Use)
		}
		d.fields[Key{entity, c.ID, c.Field}] = c.Use
	}
	return d, nil
}

// LoadDecisions reads a decisions file from path.
func LoadDecisions(path string) (*Decisions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decisions: %w", err)
	}
	return ParseDecisions(bytes.NewReader(data))
}

func entityType(name string) (domain.EntityType, error) {
	for _, e := range domain.EntityTypes {
		if string(e) == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("parse decisions: unknown entity type %q", name)
}
