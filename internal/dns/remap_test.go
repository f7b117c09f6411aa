package dns

import "testing"

func TestRemapperApply(t *testing.T) {
	m := NewRemapper()
	m.Set("example.com", "replacement.example.com")
	m.Set("replacement.example.com", "unreachable.example.com")

	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "remapped host", host: "example.com", want: "replacement.example.com"},
		{name: "unmapped host passes through", host: "other.example.com", want: "other.example.com"},
		// Only a single remapping is applied per call.
		{name: "remappings are not chained", host: "replacement.example.com", want: "unreachable.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Apply(tt.host); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestRemapperRemoveAndClear(t *testing.T) {
	m := NewRemapper()
	m.Set("a.example.com", "b.example.com")
	m.Set("c.example.com", "d.example.com")

	m.Remove("a.example.com")
	if got := m.Apply("a.example.com"); got != "a.example.com" {
		t.Errorf("Apply() after Remove() = %q, want the original host", got)
	}

	m.Clear()
	if got := m.Apply("c.example.com"); got != "c.example.com" {
		t.Errorf("Apply() after Clear() = %q, want the original host", got)
	}
}

func TestRemapperSnapshot(t *testing.T) {
	m := NewRemapper()
	m.Set("a.example.com", "b.example.com")

	snapshot := m.Snapshot()
	if len(snapshot) != 1 || snapshot["a.example.com"] != "b.example.com" {
		t.Fatalf("Snapshot() = %v, want a single a->b remapping", snapshot)
	}

	// Mutating the snapshot must not affect the remapper.
	snapshot["a.example.com"] = "evil.example.com"
	if got := m.Apply("a.example.com"); got != "b.example.com" {
		t.Errorf("Apply() after snapshot mutation = %q, want %q", got, "b.example.com")
	}
}
