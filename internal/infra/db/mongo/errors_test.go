//go:build !integration

package mongo

import (
	"errors"
	"testing"
)

type fakeLabeledError struct {
	labels []string
}

func (e *fakeLabeledError) Error() string { return "labeled" }

func (e *fakeLabeledError) HasErrorLabel(l string) bool {
	for _, have := range e.labels {
		if have == l {
			return true
		}
	}
	return false
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"transient label", &fakeLabeledError{labels: []string{labelTransient}}, true},
		{"unknown commit label", &fakeLabeledError{labels: []string{labelUnknownCommit}}, true},
		{"unrelated label", &fakeLabeledError{labels: []string{"SomethingElse"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
