// hubtoken seals a hub access token with HOTELCORE_SECRET_KEY so it can be
// written to hub_config by hand, or opens a sealed value with -decrypt.
//
// Usage:
//
//	echo -n "$HUB_TOKEN" | hubtoken
//	echo -n "$SEALED" | hubtoken -decrypt
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/secrets"
)

const secretKeyEnv = "HOTELCORE_SECRET_KEY"

var errEmptyInput = errors.New("no input on stdin")

func main() {
	decrypt := flag.Bool("decrypt", false, "decrypt a sealed token instead of encrypting")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		color.Yellow("ignoring unreadable .env file: %v", err)
	}

	if err := run(os.Stdin, os.Stdout, os.Getenv(secretKeyEnv), *decrypt); err != nil {
		color.Red("hubtoken: %v", err)
		os.Exit(1)
	}
}

// run reads one value from in and writes the transformed value to out.
func run(in io.Reader, out io.Writer, key string, decrypt bool) error {
	if key == "" {
		return fmt.Errorf("%s is not set", secretKeyEnv)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		return err
	}

	input, err := readInput(in)
	if err != nil {
		return err
	}

	var result string
	if decrypt {
		result, err = box.Decrypt(input)
	} else {
		result, err = box.Encrypt(input)
	}
	if err != nil {
		return err
	}

	_, err = color.New(color.FgCyan).Fprintln(out, result)
	return err
}

func readInput(in io.Reader) (string, error) {
	data, err := io.ReadAll(bufio.NewReader(in))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", errEmptyInput
	}
	return value, nil
}
