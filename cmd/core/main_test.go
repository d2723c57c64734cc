package main

import "testing"

func TestVersionSet(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
}
