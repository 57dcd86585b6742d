package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretBytesLen = 32

// Print fresh secrets for .env: JWT signing key and, on request, webhook secret stub
func main() {
	if err := run(os.Stdout, rand.Reader, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, random io.Reader, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	size := fs.IntP("bytes", "b", defaultSecretBytesLen, "Secret length in bytes")
	asEnv := fs.BoolP("env", "e", false, "Print as SECRET_KEY=... line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *size < 16 {
		return fmt.Errorf("secret is too short: %d bytes, want at least 16", *size)
	}

	b := make([]byte, *size)
	if _, err := io.ReadFull(random, b); err != nil {
		return err
	}

	secret := hex.EncodeToString(b)
	if *asEnv {
		secret = "SECRET_KEY=" + secret
	}

	_, err := fmt.Fprintln(out, secret)
	return err
}
