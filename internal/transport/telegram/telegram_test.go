package telegram

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"vitabot/pkg/logx"
)

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Fatal("nil stays nil")
	}

	// The zero inner error is deliberate: telebot's API error is unexported
	// and classification keys on the FloodError type alone.
	flood := tele.FloodError{RetryAfter: 3}
	if err := classify(flood); !errors.Is(err, Transient) {
		t.Fatal("flood should classify as transient")
	}

	for _, src := range []error{tele.ErrBlockedByUser, tele.ErrChatNotFound, tele.ErrUserIsDeactivated} {
		if err := classify(src); !errors.Is(err, RecipientGone) {
			t.Fatalf("%v should classify as recipient gone, got %v", src, err)
		}
	}

	unknown := errors.New("weird api response")
	if err := classify(unknown); errors.Is(err, Transient) || errors.Is(err, RecipientGone) {
		t.Fatalf("unknown error should stay unclassified, got %v", err)
	}
}

func TestSplitTextShortPassthrough(t *testing.T) {
	chunks := splitText("привет", 100)
	if len(chunks) != 1 || chunks[0] != "привет" {
		t.Fatalf("got %v", chunks)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	lines := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		lines = append(lines, strings.Repeat("x", 30))
	}
	text := strings.Join(lines, "\n")

	chunks := splitText(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		// Newline-boundary splitting keeps lines intact.
		for _, line := range strings.Split(c, "\n") {
			if line != strings.Repeat("x", 30) {
				t.Fatalf("chunk %d broke a line: %q", i, line)
			}
		}
	}
	if got := strings.Join(chunks, "\n"); got != text {
		t.Fatal("chunks do not reassemble into the original text")
	}
}

func TestSplitTextHardBreakWithoutNewlines(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := splitText(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("hard-broken chunks must reassemble exactly")
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("empty token must be rejected")
	}
}
