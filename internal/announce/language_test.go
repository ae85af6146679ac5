package announce

import (
	"errors"
	"testing"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"english", English, false},
		{"English", English, false},
		{"EN", English, false},
		{" en ", English, false},
		{"hindi", Hindi, false},
		{"HINDI", Hindi, false},
		{"hi", Hindi, false},
		{"french", English, true},
		{"", English, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLanguage) {
					t.Fatalf("expected ErrInvalidLanguage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLanguage(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLanguage_Names(t *testing.T) {
	if English.String() != "english" || Hindi.String() != "hindi" {
		t.Errorf("unexpected wire names %q %q", English.String(), Hindi.String())
	}
	if English.Code() != "en" || Hindi.Code() != "hi" {
		t.Errorf("unexpected codes %q %q", English.Code(), Hindi.Code())
	}

	avail := Available()
	if len(avail) != 2 || avail[0] != "English" || avail[1] != "Hindi" {
		t.Errorf("Available() = %v", avail)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		label string
		lang  Language
		want  string
	}{
		{"hello", Hindi, "नमस्ते"},
		{"Hello", Hindi, "नमस्ते"},
		{"THANK YOU", Hindi, "धन्यवाद"},
		{"please", Hindi, "कृपया"},
		{"A", Hindi, "A"},
		{"7", Hindi, "7"},
		{"hello", English, "hello"},
		{"Thank You", English, "Thank You"},
	}

	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.lang.String(), func(t *testing.T) {
			if got := Translate(tt.label, tt.lang); got != tt.want {
				t.Errorf("Translate(%q, %v) = %q, want %q", tt.label, tt.lang, got, tt.want)
			}
		})
	}
}

func TestPhrase(t *testing.T) {
	if got := Phrase("hello", English); got != "This is hello" {
		t.Errorf("Phrase = %q", got)
	}
	if got := Phrase("hello", Hindi); got != "This is नमस्ते" {
		t.Errorf("Phrase = %q", got)
	}
}
