package tgui

import "testing"

func TestDataSplitRoundTrip(t *testing.T) {
	cases := []struct {
		scope, action, payload string
	}{
		{"water", "add", "200"},
		{"wake", "confirmed", ""},
		{"meds", "taken", "42"},
		{"x", "y", "a:b:c"}, // payload may itself contain separators
	}
	for _, tc := range cases {
		data := Data(tc.scope, tc.action, tc.payload)
		scope, action, payload := Split(data)
		if scope != tc.scope || action != tc.action || payload != tc.payload {
			t.Errorf("round trip %q: got (%q, %q, %q)", data, scope, action, payload)
		}
	}
}

func TestSplitMalformed(t *testing.T) {
	scope, action, payload := Split("justscope")
	if scope != "justscope" || action != "" || payload != "" {
		t.Fatalf("got (%q, %q, %q)", scope, action, payload)
	}
	scope, action, payload = Split("a:b")
	if scope != "a" || action != "b" || payload != "" {
		t.Fatalf("got (%q, %q, %q)", scope, action, payload)
	}
}

func TestPackUnpackJSON(t *testing.T) {
	type payload struct {
		ID   int64  `json:"id"`
		Note string `json:"note"`
	}
	in := payload{ID: 7, Note: "пример"}
	s, err := PackJSON(in)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	var out payload
	if err := UnpackJSON(s, &out); err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}
