package redis

import "testing"

func TestParametersIDPrefersAlias(t *testing.T) {
	p := Parameters{Host: "10.0.0.1", Port: 6379, Alias: "node-a"}
	if got := p.ID(); got != "node-a" {
		t.Errorf("ID() = %q, want %q", got, "node-a")
	}
}

func TestParametersIDFallsBackToHostPort(t *testing.T) {
	p := Parameters{Host: "10.0.0.1", Port: 6379}
	if got := p.ID(); got != "10.0.0.1:6379" {
		t.Errorf("ID() = %q, want %q", got, "10.0.0.1:6379")
	}
}
