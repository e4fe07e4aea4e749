package types

import (
	"reflect"
	"testing"
	"time"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"a/b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"//a//b", "/a/b"},
		{"/a/./b/../c", "/a/c"},
		{"/../../x", "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CleanPath(tt.input); got != tt.expected {
				t.Errorf("CleanPath(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSplitAndJoinPath(t *testing.T) {
	if got := SplitPath("/"); len(got) != 0 {
		t.Errorf("SplitPath(/) = %v, expected no segments", got)
	}
	if got := SplitPath("/a/b/c/"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("SplitPath = %v", got)
	}
	if got := JoinPath("/a", "b", "c"); got != "/a/b/c" {
		t.Errorf("JoinPath = %q", got)
	}
	if got := JoinPath("/", "x"); got != "/x" {
		t.Errorf("JoinPath(/, x) = %q", got)
	}
	if ParentPath("/a/b") != "/a" || ParentPath("/a") != "/" || ParentPath("/") != "/" {
		t.Error("ParentPath mismatch")
	}
	if BaseName("/a/b") != "b" || BaseName("/") != "/" {
		t.Error("BaseName mismatch")
	}
}

func TestIsAncestor(t *testing.T) {
	tests := []struct {
		ancestor, path string
		expected       bool
	}{
		{"/", "/a", true},
		{"/", "/", false},
		{"/a", "/a/b", true},
		{"/a", "/a/b/c", true},
		{"/a", "/a", false},
		{"/a", "/ab", false},
		{"/a/b", "/a", false},
	}

	for _, tt := range tests {
		if got := IsAncestor(tt.ancestor, tt.path); got != tt.expected {
			t.Errorf("IsAncestor(%q, %q) = %v, expected %v", tt.ancestor, tt.path, got, tt.expected)
		}
	}
}

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		name       string
		a          string
		aRecursive bool
		b          string
		bRecursive bool
		expected   bool
	}{
		{"same path", "/a", false, "/a", false, true},
		{"recursive ancestor", "/a", true, "/a/b", false, true},
		{"non-recursive ancestor", "/a", false, "/a/b", false, false},
		{"recursive descendant side", "/a/b", false, "/a", true, true},
		{"siblings", "/a/b", true, "/a/c", true, false},
		{"root recursive", "/", true, "/x/y", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathsOverlap(tt.a, tt.aRecursive, tt.b, tt.bRecursive); got != tt.expected {
				t.Errorf("PathsOverlap() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestParseDepth(t *testing.T) {
	if r, err := ParseDepth("0"); err != nil || r {
		t.Errorf("ParseDepth(0) = %v, %v", r, err)
	}
	if r, err := ParseDepth("Infinity"); err != nil || !r {
		t.Errorf("ParseDepth(Infinity) = %v, %v", r, err)
	}
	if r, err := ParseDepth(""); err != nil || !r {
		t.Errorf("ParseDepth(\"\") = %v, %v", r, err)
	}
	if _, err := ParseDepth("1"); err == nil {
		t.Error("ParseDepth(1) should fail for locks")
	}
	if FormatDepth(true) != "infinity" || FormatDepth(false) != "0" {
		t.Error("FormatDepth mismatch")
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"", 0, false},
		{"Second-100", 100 * time.Second, false},
		{"second-5", 5 * time.Second, false},
		{"Infinite", InfiniteTimeout, false},
		{"Infinite, Second-4100000000", InfiniteTimeout, false},
		{"Second-0, Second-30", 30 * time.Second, false},
		{"Second-abc", 0, true},
		{"Minute-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeout(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeout(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseTimeout(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatTimeout(t *testing.T) {
	if got := FormatTimeout(InfiniteTimeout); got != "Infinite" {
		t.Errorf("FormatTimeout(infinite) = %q", got)
	}
	if got := FormatTimeout(90 * time.Second); got != "Second-90" {
		t.Errorf("FormatTimeout(90s) = %q", got)
	}
	if got := FormatTimeout(1500 * time.Millisecond); got != "Second-2" {
		t.Errorf("FormatTimeout(1.5s) = %q, expected rounding up", got)
	}
}
