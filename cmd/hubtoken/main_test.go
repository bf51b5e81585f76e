package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/secrets"
)

const testKey = "0123456789abcdef0123456789abcdef"

func init() {
	color.NoColor = true
}

func TestRun_EncryptThenDecrypt(t *testing.T) {
	var sealed bytes.Buffer
	if err := run(strings.NewReader("  hub-token-abc\n"), &sealed, testKey, false); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(sealed.String(), "hub-token-abc") {
		t.Fatal("ciphertext contains the plaintext token")
	}

	var opened bytes.Buffer
	if err := run(strings.NewReader(sealed.String()), &opened, testKey, true); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got := strings.TrimSpace(opened.String()); got != "hub-token-abc" {
		t.Errorf("decrypted = %q, want %q", got, "hub-token-abc")
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		key     string
		decrypt bool
		wantErr error
	}{
		{name: "missing key", input: "token", key: ""},
		{name: "empty input", input: "  \n", key: testKey, wantErr: errEmptyInput},
		{name: "bad ciphertext", input: "not-base64!", key: testKey, decrypt: true, wantErr: secrets.ErrDecrypt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(strings.NewReader(tt.input), &out, tt.key, tt.decrypt)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if out.Len() != 0 {
				t.Errorf("unexpected output %q", out.String())
			}
		})
	}
}
