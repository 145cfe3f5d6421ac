package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/betplatform/internal/models"
	"github.com/nkiryanov/betplatform/internal/service/auth"
)

const SecretKeyBytesLen = 32

// Prints new secret key. With --token prints access token signed by --secret-key instead
func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)

	token := fs.Bool("token", false, "Issue access token instead of secret key")
	secretKey := fs.StringP("secret-key", "s", "", "Secret key to sign token with")
	userID := fs.String("uid", "", "Account id the token is issued for, random if empty")
	email := fs.String("email", "", "Email claim")
	admin := fs.Bool("admin", false, "Issue administrator token")
	ttl := fs.Duration("ttl", 0, "Token lifetime, default if zero")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*token {
		b := make([]byte, SecretKeyBytesLen)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("error while generating secret key: %w", err)
		}
		_, err := fmt.Fprintln(out, hex.EncodeToString(b))
		return err
	}

	if *secretKey == "" {
		return errors.New("secret key is required to issue token")
	}

	id := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			return fmt.Errorf("invalid uid: %w", err)
		}
		id = parsed
	}

	verifier, err := auth.NewVerifier(auth.Config{SecretKey: *secretKey, TTL: *ttl})
	if err != nil {
		return err
	}

	access, err := verifier.Issue(models.User{ID: id, Email: *email, IsAdmin: *admin})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, access)
	return err
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
