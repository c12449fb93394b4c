package assets

import (
	"strings"
	"testing"
)

const sampleSceneXML = `<SceneObjectGroup>
  <RootPart>
    <SceneObjectPart>
      <UUID><Guid>12345678-1234-1234-1234-1234567890ab</Guid></UUID>
      <LocalId>42</LocalId>
      <Name>Test Prim</Name>
      <GroupPosition><X>1.5</X><Y>2.5</Y><Z>3.5</Z></GroupPosition>
      <RotationOffset><X>0</X><Y>0</Y><Z>0</Z><W>1</W></RotationOffset>
      <Scale><X>1</X><Y>1</Y><Z>1</Z></Scale>
      <Flags>None</Flags>
      <PassTouches>true</PassTouches>
      <PassCollisions>false</PassCollisions>
    </SceneObjectPart>
  </RootPart>
  <OtherParts>
    <Part>
      <SceneObjectPart>
        <UUID><Guid>87654321-4321-4321-4321-ba0987654321</Guid></UUID>
        <LocalId>43</LocalId>
        <Name>Child Prim</Name>
      </SceneObjectPart>
    </Part>
  </OtherParts>
</SceneObjectGroup>`

func TestDecodeSceneObjectGroup(t *testing.T) {
	group, err := DecodeSceneObjectGroup(strings.NewReader(sampleSceneXML))
	if err != nil {
		t.Fatalf("DecodeSceneObjectGroup: %v", err)
	}
	if group.RootPart.Name != "Test Prim" {
		t.Fatalf("expected root part name 'Test Prim', got %q", group.RootPart.Name)
	}
	if group.RootPart.LocalID != 42 {
		t.Fatalf("expected local id 42, got %d", group.RootPart.LocalID)
	}
	if group.RootPart.PositionX != 1.5 || group.RootPart.PositionZ != 3.5 {
		t.Fatalf("unexpected root position: %+v", group.RootPart)
	}
	if group.RootPart.Flags != 0 {
		t.Fatalf("expected Flags 'None' to coerce to 0, got %d", group.RootPart.Flags)
	}
	if !group.RootPart.PassTouches || group.RootPart.PassCollisions {
		t.Fatalf("unexpected bool fields: %+v", group.RootPart)
	}
	if len(group.Children) != 1 {
		t.Fatalf("expected 1 child part, got %d", len(group.Children))
	}
	if group.Children[0].Name != "Child Prim" {
		t.Fatalf("expected child name 'Child Prim', got %q", group.Children[0].Name)
	}
}

func TestDecodeSceneObjectGroupMissingRootFails(t *testing.T) {
	if _, err := DecodeSceneObjectGroup(strings.NewReader(`<SceneObjectGroup></SceneObjectGroup>`)); err == nil {
		t.Fatal("expected error when no RootPart is present")
	}
}

func TestDecodeSceneObjectGroupSkipsUnrecognizedPaths(t *testing.T) {
	xmlDoc := `<SceneObjectGroup>
  <RootPart>
    <SceneObjectPart>
      <Name>Extension Test</Name>
      <SomeFutureServerField><Nested>value</Nested></SomeFutureServerField>
    </SceneObjectPart>
  </RootPart>
</SceneObjectGroup>`
	group, err := DecodeSceneObjectGroup(strings.NewReader(xmlDoc))
	if err != nil {
		t.Fatalf("expected unrecognized paths to be tolerated, got error: %v", err)
	}
	if group.RootPart.Name != "Extension Test" {
		t.Fatalf("expected recognized field still parsed, got %q", group.RootPart.Name)
	}
}
