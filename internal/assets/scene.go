package assets

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ScenePart is one decoded <SceneObjectPart>.
type ScenePart struct {
	UUID      uuid.UUID
	LocalID   uint32
	Name      string
	CreatorID uuid.UUID
	OwnerID   uuid.UUID
	GroupID   uuid.UUID
	PositionX float64
	PositionY float64
	PositionZ float64
	RotationX float64
	RotationY float64
	RotationZ float64
	RotationW float64
	ScaleX    float64
	ScaleY    float64
	ScaleZ    float64
	Flags     uint32

	PassTouches    bool
	PassCollisions bool
}

// SceneObjectGroup is a decoded scene bundle: exactly one root part plus
// zero or more children.
type SceneObjectGroup struct {
	RootPart SceneObject
	Children []SceneObject
}

// SceneObject is an alias kept distinct from ScenePart so call sites read
// naturally.
type SceneObject = ScenePart

// fieldSetter coerces the text content of a recognized leaf path into the
// right field on the part under construction.
type fieldSetter func(p *ScenePart, text string) error

// pathTable is the fixed dispatch table the path-driven parser matches
// element paths against. Paths are relative to a <SceneObjectPart> element.
var pathTable = map[string]fieldSetter{
	"UUID/Guid":        setUUID(func(p *ScenePart) *uuid.UUID { return &p.UUID }),
	"LocalId":          setUint32(func(p *ScenePart) *uint32 { return &p.LocalID }),
	"Name":             setString(func(p *ScenePart) *string { return &p.Name }),
	"CreatorID/Guid":   setUUID(func(p *ScenePart) *uuid.UUID { return &p.CreatorID }),
	"OwnerID/Guid":     setUUID(func(p *ScenePart) *uuid.UUID { return &p.OwnerID }),
	"GroupID/Guid":     setUUID(func(p *ScenePart) *uuid.UUID { return &p.GroupID }),
	"GroupPosition/X":  setFloat(func(p *ScenePart) *float64 { return &p.PositionX }),
	"GroupPosition/Y":  setFloat(func(p *ScenePart) *float64 { return &p.PositionY }),
	"GroupPosition/Z":  setFloat(func(p *ScenePart) *float64 { return &p.PositionZ }),
	"RotationOffset/X": setFloat(func(p *ScenePart) *float64 { return &p.RotationX }),
	"RotationOffset/Y": setFloat(func(p *ScenePart) *float64 { return &p.RotationY }),
	"RotationOffset/Z": setFloat(func(p *ScenePart) *float64 { return &p.RotationZ }),
	"RotationOffset/W": setFloat(func(p *ScenePart) *float64 { return &p.RotationW }),
	"Scale/X":          setFloat(func(p *ScenePart) *float64 { return &p.ScaleX }),
	"Scale/Y":          setFloat(func(p *ScenePart) *float64 { return &p.ScaleY }),
	"Scale/Z":          setFloat(func(p *ScenePart) *float64 { return &p.ScaleZ }),
	"Flags":            setFlags,
	"PassTouches":      setBool(func(p *ScenePart) *bool { return &p.PassTouches }),
	"PassCollisions":   setBool(func(p *ScenePart) *bool { return &p.PassCollisions }),
}

func setUUID(field func(*ScenePart) *uuid.UUID) fieldSetter {
	return func(p *ScenePart, text string) error {
		id, err := uuid.Parse(strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("parse uuid %q: %w", text, err)
		}
		*field(p) = id
		return nil
	}
}

func setUint32(field func(*ScenePart) *uint32) fieldSetter {
	return func(p *ScenePart, text string) error {
		v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return fmt.Errorf("parse uint32 %q: %w", text, err)
		}
		*field(p) = uint32(v)
		return nil
	}
}

func setFloat(field func(*ScenePart) *float64) fieldSetter {
	return func(p *ScenePart, text string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return fmt.Errorf("parse float %q: %w", text, err)
		}
		*field(p) = v
		return nil
	}
}

func setString(field func(*ScenePart) *string) fieldSetter {
	return func(p *ScenePart, text string) error {
		*field(p) = text
		return nil
	}
}

func setBool(field func(*ScenePart) *bool) fieldSetter {
	return func(p *ScenePart, text string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return fmt.Errorf("parse bool %q: %w", text, err)
		}
		*field(p) = v
		return nil
	}
}

// setFlags coerces the integer-flag sentinel "None" to 0 alongside ordinary
// decimal values.
func setFlags(p *ScenePart, text string) error {
	text = strings.TrimSpace(text)
	if text == "None" || text == "" {
		p.Flags = 0
		return nil
	}
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return fmt.Errorf("parse flags %q: %w", text, err)
	}
	p.Flags = uint32(v)
	return nil
}

// DecodeSceneObjectGroup parses a 2001-era scene bundle into a
// SceneObjectGroup. Unrecognized paths are silently skipped to tolerate
// server extensions.
func DecodeSceneObjectGroup(r io.Reader) (*SceneObjectGroup, error) {
	dec := xml.NewDecoder(r)

	var group SceneObjectGroup
	var stack []string
	var currentPart *ScenePart
	var inOtherParts bool
	var textBuf strings.Builder

	flushPart := func() {
		if currentPart == nil {
			return
		}
		if inOtherParts {
			group.Children = append(group.Children, *currentPart)
		} else {
			group.RootPart = *currentPart
		}
		currentPart = nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("assets: scene xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			textBuf.Reset()
			switch t.Name.Local {
			case "SceneObjectPart":
				currentPart = &ScenePart{}
			case "OtherParts":
				inOtherParts = true
			}
		case xml.CharData:
			textBuf.Write(t)
		case xml.EndElement:
			if currentPart != nil {
				path := partRelativePath(stack)
				if setter, ok := pathTable[path]; ok {
					if err := setter(currentPart, textBuf.String()); err != nil {
						return nil, fmt.Errorf("assets: scene xml at %s: %w", path, err)
					}
				}
			}
			textBuf.Reset()

			if t.Name.Local == "SceneObjectPart" {
				flushPart()
			}
			if t.Name.Local == "OtherParts" {
				inOtherParts = false
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if group.RootPart.UUID == uuid.Nil && group.RootPart.Name == "" {
		return nil, fmt.Errorf("assets: scene xml contained no RootPart")
	}
	return &group, nil
}

// partRelativePath returns the path of the current element relative to the
// nearest enclosing SceneObjectPart, e.g. "GroupPosition/X".
func partRelativePath(stack []string) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == "SceneObjectPart" {
			return strings.Join(stack[i+1:], "/")
		}
	}
	return strings.Join(stack, "/")
}
