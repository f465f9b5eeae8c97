// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cmap

import "testing"

func TestRegistryHasNineNamedColormaps(t *testing.T) {
	r := NewRegistry()
	want := []string{"grey", "a", "b", "bb", "cubehelix0", "cubehelix1", "rainbow", "standard", "null"}
	if len(want) != 9 {
		t.Fatalf("test setup error: want %d entries", len(want))
	}
	for _, name := range want {
		m, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if m.Name() != name {
			t.Fatalf("Get(%q).Name() = %q", name, m.Name())
		}
	}
}

func TestRegistryUnknownName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("does-not-exist"); err == nil {
		t.Fatalf("expected an UnknownStrategy error")
	}
}

func TestColorMapsAreStateless(t *testing.T) {
	r := NewRegistry()
	m, err := r.Get("rainbow")
	if err != nil {
		t.Fatal(err)
	}
	a := m.RGB(128)
	b := m.RGB(128)
	if a != b {
		t.Fatalf("RGB(v) must be pure: got %v then %v for the same input", a, b)
	}
}

func TestColorMapsCoverFullByteRange(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"grey", "a", "b", "bb", "cubehelix0", "cubehelix1", "rainbow", "standard", "null"} {
		m, err := r.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		// RGB must not panic across the full input domain.
		m.RGB(0)
		m.RGB(255)
		m.RGB(127)
	}
}

func TestGreyColorMapIsIdentityRamp(t *testing.T) {
	m := greyColorMap()
	c := m.RGB(42)
	if c.R != 42 || c.G != 42 || c.B != 42 || c.A != 255 {
		t.Fatalf("grey(42) = %+v, want {42,42,42,255}", c)
	}
}

func TestDefaultIsGrey(t *testing.T) {
	if Default().Name() != "grey" {
		t.Fatalf("Default() = %q, want grey", Default().Name())
	}
}
