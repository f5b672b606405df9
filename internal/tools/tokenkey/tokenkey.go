// Package tokenkey generates ed25519 signing keys for the token issuer.
package tokenkey

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
)

// Config holds configuration for token key generation.
type Config struct {
	EnvName string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{EnvName: "PASSKEYD_TOKEN_PRIVATE_KEY"}
	fs.StringVar(&cfg.EnvName, "env", cfg.EnvName, "environment variable name to emit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a keypair and writes the private key export plus the public
// key to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.EnvName == "" {
		return errors.New("env name is required")
	}
	if out == nil {
		return errors.New("output is required")
	}

	var (
		public  ed25519.PublicKey
		private ed25519.PrivateKey
		err     error
	)
	if reader != nil {
		public, private, err = ed25519.GenerateKey(reader)
	} else {
		public, private, err = ed25519.GenerateKey(nil)
	}
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	if _, err := fmt.Fprintf(out, "%s=%s\n", cfg.EnvName, base64.StdEncoding.EncodeToString(private)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "# public key: %s\n", base64.StdEncoding.EncodeToString(public))
	return err
}
