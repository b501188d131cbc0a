package deleter

import (
	"testing"
)

func TestObjectTypesID(t *testing.T) {
	types := &ObjectTypes{byName: map[string]int64{
		TypeNameContact:   1,
		TypeNameCommunity: 49,
		TypeNameTenant:    94,
	}}

	id, err := types.ID(TypeNameCommunity)
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if id != 49 {
		t.Errorf("ID(dstCommunity) = %d, want 49", id)
	}

	_, err = types.ID("dstNonexistent")
	if err == nil {
		t.Fatal("unknown type name must fail")
	}
	if !IsStructural(err) {
		t.Error("unresolved type must be a structural error")
	}
}

func TestKnownTypeIDsCoverWellKnownNames(t *testing.T) {
	for _, name := range []string{TypeNameContact, TypeNameCommunity, TypeNameTenant} {
		if _, ok := knownTypeIDs[name]; !ok {
			t.Errorf("historical map missing %s", name)
		}
	}
	if knownTypeIDs[TypeNameContact] != 1 {
		t.Errorf("dstContact = %d, want 1", knownTypeIDs[TypeNameContact])
	}
	if knownTypeIDs[TypeNameTenant] != 94 {
		t.Errorf("dstTenant = %d, want 94", knownTypeIDs[TypeNameTenant])
	}
}
