// Package casefile reads solve cases: an aircraft description plus the
// mission profile to fly. Files are YAML; JSON documents parse as well.
package casefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yegors/aeromission/internal/aircraft"
	"github.com/yegors/aeromission/internal/mission"
)

// Case is one aircraft and its mission.
type Case struct {
	Aircraft aircraft.Aircraft `yaml:"aircraft" json:"aircraft"`
	Mission  Profile           `yaml:"mission,omitempty" json:"mission,omitempty"`
}

// Profile is an ordered list of segment specs. In YAML it may also be
// written as a mapping from segment title to spec, in flight order.
type Profile []mission.SegmentSpec

// UnmarshalYAML accepts either a sequence or a title-keyed mapping.
func (p *Profile) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		specs := make([]mission.SegmentSpec, len(node.Content))
		for i, item := range node.Content {
			if err := decodeStrict(item, &specs[i]); err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
		}
		*p = specs
		return nil

	case yaml.MappingNode:
		specs := make([]mission.SegmentSpec, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var spec mission.SegmentSpec
			if err := decodeStrict(node.Content[i+1], &spec); err != nil {
				return fmt.Errorf("segment %q: %w", node.Content[i].Value, err)
			}
			if spec.Title == "" {
				spec.Title = node.Content[i].Value
			}
			specs = append(specs, spec)
		}
		*p = specs
		return nil

	default:
		return fmt.Errorf("line %d: mission must be a list or a mapping of segments", node.Line)
	}
}

// decodeStrict decodes node rejecting unknown keys. Node.Decode does not
// inherit the KnownFields setting of the outer decoder.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Load reads a case file.
func Load(path string) (*Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open case file: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a case from memory.
func Parse(data []byte) (*Case, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a single case document. Unknown fields are rejected so typos
// in segment parameters do not silently fall back to zero.
func Decode(r io.Reader) (*Case, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Case
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty case document")
		}
		return nil, fmt.Errorf("failed to decode case: %w", err)
	}
	return &c, nil
}

// Build validates the aircraft and turns the profile into segments. An empty
// profile yields the default mission.
func (c *Case) Build() (*aircraft.Aircraft, []mission.Segment, error) {
	ac := c.Aircraft
	if err := ac.Prepare(); err != nil {
		return nil, nil, err
	}
	segments, err := mission.BuildProfile(c.Mission)
	if err != nil {
		return nil, nil, err
	}
	return &ac, segments, nil
}
