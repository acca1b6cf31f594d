package domain

import (
	"errors"
	"testing"
)

func TestManifest_DefaultIsPinned(t *testing.T) {
	m := DefaultManifest()
	if err := m.Validate(); err != nil {
		t.Fatalf("default manifest should be valid: %v", err)
	}
	if len(m.Packages) != 4 {
		t.Errorf("expected 4 packages, got %d", len(m.Packages))
	}
}

func TestManifest_Unpinned(t *testing.T) {
	for _, v := range []string{"", "latest", ">=1.0", "1.*", "~1.2", "^2"} {
		m := DefaultManifest()
		m.Packages[1].Version = v
		if err := m.Validate(); !errors.Is(err, ErrUnpinnedPackage) {
			t.Errorf("version %q: expected ErrUnpinnedPackage, got %v", v, err)
		}
	}
}

func TestManifest_Requirements(t *testing.T) {
	reqs := DefaultManifest().Requirements()
	if reqs[0] != "requests==2.31.0" {
		t.Errorf("unexpected first requirement: %s", reqs[0])
	}
}

func TestManifest_DigestStable(t *testing.T) {
	a := DefaultManifest()
	b := DefaultManifest()
	// Порядок библиотек не влияет на digest
	b.Packages[0], b.Packages[3] = b.Packages[3], b.Packages[0]

	if a.Digest() != b.Digest() {
		t.Error("digest should not depend on package order")
	}

	b.Packages[0].Version = "9.9.9"
	if a.Digest() == b.Digest() {
		t.Error("digest should change with versions")
	}
}
