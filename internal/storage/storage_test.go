package storage

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"game.SC2Replay", "game.SC2Replay"},
		{"../../etc/passwd", "passwd"},
		{`C:\replays\ladder game.SC2Replay`, "laddergame.SC2Replay"},
		{"Игра-1.SC2Replay", "Игра-1.SC2Replay"},
		{"...", "replay"},
		{"", "replay"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Long(t *testing.T) {
	name := strings.Repeat("a", 300) + ".SC2Replay"
	got := SanitizeFilename(name)
	if len(got) != maxNameLen {
		t.Errorf("len = %d, ожидалось %d", len(got), maxNameLen)
	}
	if !strings.HasSuffix(got, ".SC2Replay") {
		t.Errorf("расширение потеряно: %q", got)
	}

	cyr := SanitizeFilename(strings.Repeat("ж", 150) + "a.SC2Replay")
	if !utf8.ValidString(cyr) {
		t.Fatalf("SanitizeFilename вернул невалидный UTF-8: %q", cyr)
	}
	if n := utf8.RuneCountInString(cyr); n != maxNameLen {
		t.Errorf("длина в символах = %d, ожидалось %d", n, maxNameLen)
	}
	if !strings.HasSuffix(cyr, "жa.SC2Replay") {
		t.Errorf("обрезан не тот конец имени: %q", cyr)
	}
}

func TestNewRef(t *testing.T) {
	ref := NewRef("game.SC2Replay")
	if err := ValidateRef(ref); err != nil {
		t.Fatalf("ValidateRef(%q) = %v", ref, err)
	}
	if !strings.HasSuffix(ref, "/game.SC2Replay") {
		t.Errorf("ref = %q, ожидалось имя файла в конце", ref)
	}
	if NewRef("game.SC2Replay") == ref {
		t.Error("две ссылки на одно имя совпали")
	}
}

func TestValidateRef(t *testing.T) {
	bad := []string{
		"",
		"game.SC2Replay",
		"not-uuid/game.SC2Replay",
		"7f1b8a62-3c0e-4b3a-9a55-0d3d0b2f9c11/",
		"7f1b8a62-3c0e-4b3a-9a55-0d3d0b2f9c11/../x",
		"7f1b8a62-3c0e-4b3a-9a55-0d3d0b2f9c11/..",
	}
	for _, ref := range bad {
		if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("ValidateRef(%q) = %v, ожидался ErrInvalidRef", ref, err)
		}
	}
}
