package classify

import "testing"

func TestMatcherDefaults(t *testing.T) {
	matcher, err := NewMatcher()
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	cases := map[string]bool{
		".DS_Store":                true,
		".goutputstream-ABC123":    true,
		"widget.js":                false,
		"DS_Store.js":              false,
		"nested/.goutputstream-Q1": true,
	}
	for path, expected := range cases {
		if matcher.Match(path) != expected {
			t.Fatalf("Match(%q) = %v, expected %v", path, !expected, expected)
		}
	}
}

func TestMatcherExtraPatterns(t *testing.T) {
	matcher, err := NewMatcher("*.swp", "# comment", "", "**/node_modules/**")
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if !matcher.Match("nested/.widget.js.swp") {
		t.Fatalf("expected swap file to be ignored")
	}
	if !matcher.Match("src/node_modules/pkg/index.js") {
		t.Fatalf("expected node_modules path to be ignored")
	}
	if len(matcher.Patterns()) != len(DefaultIgnorePatterns)+2 {
		t.Fatalf("unexpected patterns %v", matcher.Patterns())
	}
}

func TestMatcherRejectsInvalidPattern(t *testing.T) {
	if _, err := NewMatcher("[unterminated"); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestMatcherDirectoryPatternsAreRootRelative(t *testing.T) {
	matcher, err := NewMatcher("vendor/*.js")
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if !matcher.Match("vendor/lib.js") {
		t.Fatalf("expected top-level vendor script to be ignored")
	}
	if matcher.Match("widgets/vendor/lib.js") {
		t.Fatalf("expected nested vendor directory to be watched")
	}
	if matcher.Match("vendor/deep/lib.js") {
		t.Fatalf("expected single star to stop at a separator")
	}
}
