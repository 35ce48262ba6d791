package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/JustinD79/diaguard/internal/crypto"
)

// GenerateKeyCommand prints a fresh AES-256 key for TOKEN_ENCRYPTION_KEY.
type GenerateKeyCommand struct{}

// NewGenerateKeyCommand creates a new GenerateKeyCommand.
func NewGenerateKeyCommand() *GenerateKeyCommand {
	return &GenerateKeyCommand{}
}

// ParseFlags parses command line flags.
func (cmd *GenerateKeyCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("generate-key", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s generate-key\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a base64-encoded AES-256 key for encrypting provider tokens.\n")
		fmt.Fprintf(os.Stderr, "Set the printed value as TOKEN_ENCRYPTION_KEY.\n")
	}
	return fs.Parse(args)
}

// Run generates and prints the key.
func (cmd *GenerateKeyCommand) Run() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	fmt.Println(key)
	return nil
}
