package core

import (
	"regexp"
	"strings"
	"testing"
)

var (
	inviteCodeRe       = regexp.MustCompile(`^[0-9A-F]{3}-[0-9A-F]{3}$`)
	registrationCodeRe = regexp.MustCompile(`^[0-9]{8}$`)
)

func TestGenerateCode(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		n        int
	}{
		{name: "hex", alphabet: HexAlphabet, n: 6},
		{name: "digits", alphabet: DigitAlphabet, n: 8},
		{name: "single char alphabet", alphabet: "A", n: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := GenerateCode(tt.alphabet, tt.n)
			if err != nil {
				t.Fatalf("GenerateCode() error = %v", err)
			}
			if len(code) != tt.n {
				t.Errorf("GenerateCode() len = %d; want %d", len(code), tt.n)
			}
			for _, c := range code {
				if !strings.ContainsRune(tt.alphabet, c) {
					t.Errorf("GenerateCode() char %q not in alphabet %q", c, tt.alphabet)
				}
			}
		})
	}
}

func TestInviteCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := InviteCode()
		if err != nil {
			t.Fatalf("InviteCode() error = %v", err)
		}
		if !inviteCodeRe.MatchString(code) {
			t.Fatalf("InviteCode() = %q; want XXX-XXX hex", code)
		}
	}
}

func TestRegistrationCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := RegistrationCode()
		if err != nil {
			t.Fatalf("RegistrationCode() error = %v", err)
		}
		if !registrationCodeRe.MatchString(code) {
			t.Fatalf("RegistrationCode() = %q; want 8 digits", code)
		}
	}
}
