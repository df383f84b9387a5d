package ident

import (
	"strings"
	"testing"
)

func TestResolve_Deterministic(t *testing.T) {
	a := Command{Path: "/usr/bin/tail", Args: []string{"-f", "/var/log/syslog"}}
	b := Command{Path: "/usr/bin/tail", Args: []string{"-f", "/var/log/syslog"}}

	if Resolve(a) != Resolve(b) {
		t.Errorf("equal commands resolved to different identifiers: %q vs %q", Resolve(a), Resolve(b))
	}
}

func TestResolve_DiffersOnAnyInput(t *testing.T) {
	base := Command{Path: "/usr/bin/tail", Args: []string{"-f", "/var/log/syslog"}}
	variants := []Command{
		{Path: "/usr/bin/head", Args: []string{"-f", "/var/log/syslog"}},
		{Path: "/usr/bin/tail", Args: []string{"-F", "/var/log/syslog"}},
		{Path: "/usr/bin/tail", Args: []string{"-f"}},
		{Path: "/usr/bin/tail", Args: []string{"-f", "/var/log/syslog", ""}},
	}

	for _, v := range variants {
		if Resolve(v) == Resolve(base) {
			t.Errorf("command %v collided with %v", v, base)
		}
	}
}

func TestResolve_ArgumentBoundariesMatter(t *testing.T) {
	joined := Command{Path: "/bin/echo", Args: []string{"a b"}}
	split := Command{Path: "/bin/echo", Args: []string{"a", "b"}}

	if Resolve(joined) == Resolve(split) {
		t.Error("argument boundary lost in identifier derivation")
	}
}

func TestResolve_IdentifierShape(t *testing.T) {
	id := Resolve(Command{Path: "/bin/echo", Args: []string{"hello"}})
	if len(id) != 16 {
		t.Errorf("expected 16 hex chars, got %d (%q)", len(id), id)
	}
	if strings.ToLower(id) != id {
		t.Errorf("identifier should be lowercase hex, got %q", id)
	}
}

func TestChannelPath(t *testing.T) {
	id := Resolve(Command{Path: "/bin/echo"})
	path := ChannelPath("/run/user/1000", id)

	if !strings.Contains(path, "daemon-"+id) {
		t.Errorf("channel path %q does not embed identifier", path)
	}
	if !strings.HasSuffix(path, ".sock") && !strings.HasPrefix(path, `\\.\pipe\`) {
		t.Errorf("unexpected channel path shape: %q", path)
	}
}

func TestCommandString(t *testing.T) {
	if got := (Command{Path: "/bin/echo"}).String(); got != "/bin/echo" {
		t.Errorf("expected bare path, got %q", got)
	}
	if got := (Command{Path: "/bin/echo", Args: []string{"a", "b"}}).String(); got != "/bin/echo a b" {
		t.Errorf("unexpected command string %q", got)
	}
}
