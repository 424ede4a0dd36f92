package protocol_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/omochice/caret-chat/pkg/protocol"
)

func TestDecodeFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []string
	}{
		{
			name: "single undelimited message",
			raw:  []byte("hello"),
			want: []string{"hello"},
		},
		{
			name: "trailing null padding is stripped",
			raw:  append([]byte("hi^"), make([]byte, 20)...),
			want: []string{"hi"},
		},
		{
			name: "multiple frames in one read",
			raw:  []byte("one^two^three^"),
			want: []string{"one", "two", "three"},
		},
		{
			name: "empty frames are dropped",
			raw:  []byte("^^a^  ^^"),
			want: []string{"a"},
		},
		{
			name: "surrounding whitespace is trimmed",
			raw:  []byte("  spaced out \r\n^"),
			want: []string{"spaced out"},
		},
		{
			name: "only padding",
			raw:  make([]byte, protocol.ReadBufferSize),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.DecodeFrames(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeFrames() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoder_ReassemblesSplitFrames(t *testing.T) {
	d := protocol.NewDecoder(protocol.MaxFrameLen)

	if got := d.Feed([]byte("hel")); len(got) != 0 {
		t.Fatalf("Feed() = %q, want no frames yet", got)
	}
	if !d.Pending() {
		t.Fatal("Pending() = false, want true")
	}

	got := d.Feed([]byte("lo^wor"))
	if !reflect.DeepEqual(got, []string{"hello"}) {
		t.Fatalf("Feed() = %q, want [hello]", got)
	}

	got = d.Feed([]byte("ld^"))
	if !reflect.DeepEqual(got, []string{"world"}) {
		t.Fatalf("Feed() = %q, want [world]", got)
	}
	if d.Pending() {
		t.Error("Pending() = true after complete frame")
	}
}

func TestDecoder_Flush(t *testing.T) {
	d := protocol.NewDecoder(0)
	d.Feed([]byte("legacy client text"))

	got := d.Flush()
	if !reflect.DeepEqual(got, []string{"legacy client text"}) {
		t.Errorf("Flush() = %q, want [legacy client text]", got)
	}
	if got := d.Flush(); got != nil {
		t.Errorf("second Flush() = %q, want nil", got)
	}
}

func TestDecoder_DropsOversizedFrames(t *testing.T) {
	d := protocol.NewDecoder(protocol.MaxFrameLen)

	exact := strings.Repeat("a", protocol.MaxFrameLen)
	over := strings.Repeat("b", 150)

	got := d.Feed([]byte(exact + "^" + over + "^ok^"))
	if !reflect.DeepEqual(got, []string{exact, "ok"}) {
		t.Errorf("Feed() = %q, want the 100 byte frame and ok", got)
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}
}

func TestDecoder_DiscardsRunawayCarry(t *testing.T) {
	d := protocol.NewDecoder(protocol.MaxFrameLen)

	chunk := []byte(strings.Repeat("x", protocol.ReadBufferSize))
	d.Feed(chunk)
	d.Feed(chunk)

	got := d.Feed([]byte("tail^next^"))
	if !reflect.DeepEqual(got, []string{"next"}) {
		t.Errorf("Feed() = %q, want [next]", got)
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}
}

func TestEncodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		label string
		body  string
		want  string
	}{
		{
			name:  "chat line",
			label: "alice",
			body:  "hello",
			want:  "alice: hello^",
		},
		{
			name:  "delimiter in body is escaped",
			label: "mallory",
			body:  "a^b^c",
			want:  "mallory: a#b#c^",
		},
		{
			name:  "delimiter in label is escaped",
			label: "ev^e",
			body:  "x",
			want:  "ev#e: x^",
		},
		{
			name: "empty label",
			body: "/whoami",
			want: "/whoami^",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(protocol.EncodeFrame(tt.label, tt.body)); got != tt.want {
				t.Errorf("EncodeFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeFrame_RoundTrip(t *testing.T) {
	bodies := []string{"hello", "with spaces inside", "/name Alice", "ünïcödé ✓"}
	for _, body := range bodies {
		got := protocol.DecodeFrames(protocol.EncodeFrame("", body))
		if !reflect.DeepEqual(got, []string{body}) {
			t.Errorf("round trip of %q = %q", body, got)
		}

		got = protocol.DecodeFrames(protocol.EncodeFrame("Server", body))
		if len(got) != 1 {
			t.Fatalf("round trip with label of %q = %q", body, got)
		}
		if label, gotBody := protocol.SplitLabel(got[0]); label != "Server" || gotBody != body {
			t.Errorf("SplitLabel(%q) = %q, %q", got[0], label, gotBody)
		}
	}
}

func TestEncodeFrame_EscapedBodyStaysOneFrame(t *testing.T) {
	bodies := []string{"^", "^^^", "a^b", "fake: frame^injected^"}
	for _, body := range bodies {
		got := protocol.DecodeFrames(protocol.EncodeFrame("bob", body))
		if len(got) != 1 {
			t.Errorf("EncodeFrame(%q) decoded into %d frames: %q", body, len(got), got)
		}
	}
}

func TestSplitLabel(t *testing.T) {
	label, body := protocol.SplitLabel("no label here")
	if label != "" || body != "no label here" {
		t.Errorf("SplitLabel() = %q, %q", label, body)
	}

	label, body = protocol.SplitLabel("System: Your name is a: b")
	if label != "System" || body != "Your name is a: b" {
		t.Errorf("SplitLabel() = %q, %q", label, body)
	}
}
