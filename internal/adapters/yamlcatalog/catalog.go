package yamlcatalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/membertypes"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

type memberTypeEntry struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type fieldEntry struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type userEntry struct {
	ID     string         `yaml:"id"`
	Values map[int]string `yaml:"values"`
}

type catalogFile struct {
	Version     int               `yaml:"version"`
	MemberTypes []memberTypeEntry `yaml:"member_types"`
	Fields      []fieldEntry      `yaml:"fields"`
	Users       []userEntry       `yaml:"users"`
}

// UserValue is a stored profile value seeded from the catalog file.
type UserValue struct {
	User  profilefields.UserID
	Field domain.FieldID
	Value string
}

// Catalog is a static member-type and profile-field catalog read from a YAML file.
// It implements membertypes.Catalog and profilefields.Catalog.
type Catalog struct {
	memberTypes []membertypes.MemberType
	fields      []profilefields.Field
	users       []UserValue
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(b []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	if cf.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}

	c := &Catalog{}
	seenTypes := make(map[string]bool, len(cf.MemberTypes))
	for _, mt := range cf.MemberTypes {
		id := strings.TrimSpace(mt.ID)
		if id == "" {
			return nil, errors.New("catalog: member type without id")
		}
		if seenTypes[id] {
			return nil, fmt.Errorf("catalog: duplicate member type %q", id)
		}
		seenTypes[id] = true
		label := strings.TrimSpace(mt.Label)
		if label == "" {
			label = id
		}
		c.memberTypes = append(c.memberTypes, membertypes.MemberType{ID: domain.MemberType(id), Label: label})
	}

	seenFields := make(map[int]bool, len(cf.Fields))
	for _, f := range cf.Fields {
		if f.ID <= 0 {
			return nil, fmt.Errorf("catalog: invalid field id %d", f.ID)
		}
		if seenFields[f.ID] {
			return nil, fmt.Errorf("catalog: duplicate field %d", f.ID)
		}
		seenFields[f.ID] = true
		c.fields = append(c.fields, profilefields.Field{ID: domain.FieldID(f.ID), Name: strings.TrimSpace(f.Name)})
	}

	for _, u := range cf.Users {
		if strings.TrimSpace(u.ID) == "" {
			return nil, errors.New("catalog: user without id")
		}
		for fieldID, v := range u.Values {
			if !seenFields[fieldID] {
				return nil, fmt.Errorf("catalog: user %q has value for unknown field %d", u.ID, fieldID)
			}
			c.users = append(c.users, UserValue{
				User:  profilefields.UserID(strings.TrimSpace(u.ID)),
				Field: domain.FieldID(fieldID),
				Value: v,
			})
		}
	}
	return c, nil
}

func (c *Catalog) ListMemberTypes(ctx context.Context) ([]membertypes.MemberType, error) {
	_ = ctx
	out := make([]membertypes.MemberType, len(c.memberTypes))
	copy(out, c.memberTypes)
	return out, nil
}

func (c *Catalog) ListFields(ctx context.Context) ([]profilefields.Field, error) {
	_ = ctx
	out := make([]profilefields.Field, len(c.fields))
	copy(out, c.fields)
	return out, nil
}

// UserValues returns the seeded stored values.
func (c *Catalog) UserValues() []UserValue {
	out := make([]UserValue, len(c.users))
	copy(out, c.users)
	return out
}
