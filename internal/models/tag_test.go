package models

import (
	"errors"
	"testing"
)

func TestTagValidate(t *testing.T) {
	valid := Tag{ImageID: "A", Filename: "f", Filepath: "/x", Deadline: "EOD"}
	tests := []struct {
		name   string
		mutate func(*Tag)
		ok     bool
	}{
		{"complete", func(*Tag) {}, true},
		{"blank image id", func(t *Tag) { t.ImageID = " " }, false},
		{"blank filename", func(t *Tag) { t.Filename = "" }, false},
		{"blank filepath", func(t *Tag) { t.Filepath = "\t" }, false},
		{"blank deadline", func(t *Tag) { t.Deadline = "  " }, false},
		{"free-form deadline", func(t *Tag) { t.Deadline = "end of month" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tag := valid
			tc.mutate(&tag)
			err := tag.Validate()
			if tc.ok && err != nil {
				t.Fatalf("Validate(%+v) = %v", tag, err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Validate(%+v) = %v, want ErrInvalidInput", tag, err)
			}
		})
	}
}

func TestOverlayContentLines(t *testing.T) {
	got := Tag{ImageID: "A", Filename: "f", Filepath: "/x", Deadline: "EOD"}.Content().Lines()
	want := []string{"Filename: f", "Path: /x", "Deadline: EOD"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Lines = %q, want %q", got, want)
		}
	}
}
