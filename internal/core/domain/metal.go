package domain

import (
	"fmt"
	"strings"
)

type Metal string

const (
	MetalGold     Metal = "gold"
	MetalSilver   Metal = "silver"
	MetalPlatinum Metal = "platinum"
)

// Symbol returns the ISO 4217 code the pricing provider quotes the metal under.
func (m Metal) Symbol() string {
	switch m {
	case MetalGold:
		return "XAU"
	case MetalSilver:
		return "XAG"
	case MetalPlatinum:
		return "XPT"
	}
	return ""
}

func ParseMetal(s string) (Metal, error) {
	m := Metal(strings.ToLower(strings.TrimSpace(s)))
	if m.Symbol() == "" {
		return "", fmt.Errorf("unknown metal %q", s)
	}
	return m, nil
}
