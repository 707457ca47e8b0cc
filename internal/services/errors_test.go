package services

import (
	"errors"
	"testing"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrTransient, "objstore", "write archive", "upload interrupted", cause)

	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "images", "list", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("nil marker should default to transient: %v", err)
	}
}

func TestIsCallerFault(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", Wrap(ErrValidation, "scheduler", "request", "gallery has no images", nil), true},
		{"not found", Wrap(ErrNotFound, "images", "list", "no such gallery", nil), true},
		{"transient", Wrap(ErrTransient, "objstore", "read", "", errors.New("io")), false},
		{"timeout", Wrap(ErrTimeout, "objstore", "write", "", nil), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCallerFault(tc.err); got != tc.want {
				t.Fatalf("IsCallerFault(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
