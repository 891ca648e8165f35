package flickr

import (
	"encoding/json"
	"testing"
)

func TestFlexIntAcceptsStringAndNumber(t *testing.T) {
	var payload struct {
		A flexInt `json:"a"`
		B flexInt `json:"b"`
		C flexInt `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": "1543", "b": 42, "c": ""}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.A != 1543 || payload.B != 42 || payload.C != 0 {
		t.Errorf("got a=%d b=%d c=%d", payload.A, payload.B, payload.C)
	}
}

func TestFlexBoolAcceptsVariants(t *testing.T) {
	var payload struct {
		A flexBool `json:"a"`
		B flexBool `json:"b"`
		C flexBool `json:"c"`
		D flexBool `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1, "b": "1", "c": true, "d": 0}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !payload.A || !payload.B || !payload.C || payload.D {
		t.Errorf("got a=%v b=%v c=%v d=%v", payload.A, payload.B, payload.C, payload.D)
	}
}

func TestBestURLPrefersOriginal(t *testing.T) {
	p := photoJSON{URLOriginal: "o", URLLarge2K: "k", URLLarge: "l"}
	if got := p.bestURL(); got != "o" {
		t.Errorf("expected the original URL, got %q", got)
	}

	p.URLOriginal = ""
	if got := p.bestURL(); got != "k" {
		t.Errorf("expected the 2K fallback, got %q", got)
	}

	empty := photoJSON{}
	if got := empty.bestURL(); got != "" {
		t.Errorf("expected empty URL for entry without renditions, got %q", got)
	}
}

func TestItemExtension(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{"recorded format", Item{Kind: MediaPhoto, OriginalFormat: "png"}, "png"},
		{"photo default", Item{Kind: MediaPhoto}, "jpg"},
		{"video default", Item{Kind: MediaVideo}, "mp4"},
		{"video with format", Item{Kind: MediaVideo, OriginalFormat: "mov"}, "mov"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.item.Extension(); got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestToItem(t *testing.T) {
	raw := `{
		"id": "53001", "title": "Sunset", "media": "photo",
		"originalformat": "jpg",
		"url_o": "https://live.example.com/53001_o.jpg",
		"tags": "beach sunset",
		"datetaken": "2024-07-01 19:30:00",
		"dateupload": "1719862200",
		"ispublic": 1, "isfriend": 0, "isfamily": 0,
		"description": {"_content": "evening walk"}
	}`
	var p photoJSON
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	item := p.toItem()
	if item.ID != "53001" || item.Kind != MediaPhoto {
		t.Errorf("unexpected identity: %+v", item)
	}
	if item.OriginalURL != "https://live.example.com/53001_o.jpg" {
		t.Errorf("unexpected URL %q", item.OriginalURL)
	}
	if item.Privacy != PrivacyPublic {
		t.Errorf("expected public, got %s", item.Privacy)
	}
	if len(item.Tags) != 2 || item.Tags[0] != "beach" {
		t.Errorf("unexpected tags %v", item.Tags)
	}
	if item.Description != "evening walk" {
		t.Errorf("unexpected description %q", item.Description)
	}
	if item.Taken.IsZero() || item.Uploaded.IsZero() {
		t.Errorf("dates should be parsed: taken=%v uploaded=%v", item.Taken, item.Uploaded)
	}
}

func TestPrivacyOf(t *testing.T) {
	tests := []struct {
		public, friend, family bool
		want                   Privacy
	}{
		{true, false, false, PrivacyPublic},
		{false, true, false, PrivacyFriends},
		{false, false, true, PrivacyFamily},
		{false, true, true, PrivacyFriends},
		{false, false, false, PrivacyPrivate},
	}

	for _, test := range tests {
		if got := privacyOf(test.public, test.friend, test.family); got != test.want {
			t.Errorf("privacyOf(%v, %v, %v) = %s, want %s",
				test.public, test.friend, test.family, got, test.want)
		}
	}
}
