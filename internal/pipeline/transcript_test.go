package pipeline

import "testing"

func TestAppendConcatenatesInOrder(t *testing.T) {
	var tr Transcript

	segments := []string{"hello there", "how are you", "fine thanks"}
	for _, seg := range segments {
		if !tr.Append(seg) {
			t.Fatalf("Append(%q) reported no change", seg)
		}
	}

	want := "hello there how are you fine thanks"
	if got := tr.Current(); got != want {
		t.Errorf("Current() = %q, want %q", got, want)
	}
}

func TestAppendTrimsSegments(t *testing.T) {
	var tr Transcript
	tr.Append("  hello there  ")
	tr.Append("\thow are you\n")

	want := "hello there how are you"
	if got := tr.Current(); got != want {
		t.Errorf("Current() = %q, want %q", got, want)
	}
}

func TestAppendEmptyIsNoOp(t *testing.T) {
	var tr Transcript
	tr.Append("hello there")

	for _, seg := range []string{"", "   ", "\t\n"} {
		if tr.Append(seg) {
			t.Errorf("Append(%q) reported a change", seg)
		}
	}

	if got := tr.Current(); got != "hello there" {
		t.Errorf("Current() = %q, want %q", got, "hello there")
	}
}

func TestAppendNeverShrinks(t *testing.T) {
	var tr Transcript
	prev := 0
	for _, seg := range []string{"one", "", "two three", "   ", "four"} {
		tr.Append(seg)
		cur := len(tr.Current())
		if cur < prev {
			t.Fatalf("transcript shrank from %d to %d after Append(%q)", prev, cur, seg)
		}
		prev = cur
	}
}

func TestWordCount(t *testing.T) {
	var tr Transcript
	if got := tr.WordCount(); got != 0 {
		t.Errorf("WordCount() = %d, want 0", got)
	}
	tr.Append("hello there")
	tr.Append("how are you")
	if got := tr.WordCount(); got != 5 {
		t.Errorf("WordCount() = %d, want 5", got)
	}
}
