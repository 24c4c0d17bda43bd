package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"stakeledger/cmd/internal/passphrase"
	"stakeledger/crypto"
	"stakeledger/gateway/middleware"
)

const passphraseEnv = "STAKE_KEYSTORE_PASSPHRASE"

// passphrases is swapped by tests to avoid prompting.
var passphrases = func() *passphrase.Source { return passphrase.NewSource(passphraseEnv) }

func keygen(args []string, out io.Writer, _ env) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("keystore", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*path) == "" {
		return fmt.Errorf("%w: --keystore is required", errUsage)
	}
	pass, err := passphrases().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*path, key, pass); err != nil {
		return err
	}
	addr := key.PubKey().Address()
	_, err = fmt.Fprintf(out, "keystore: %s\naddress:  %s\nbech32:   %s\n", *path, addr.Hex(), crypto.FromCommon(addr).String())
	return err
}

func address(args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: address takes exactly one argument", errUsage)
	}
	addr, err := crypto.ParseAddress(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n%s\n", addr.Hex(), crypto.FromCommon(addr).String())
	return err
}

func token(args []string, out io.Writer, getenv env) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	secretEnv := fs.String("secret-env", "STAKERD_JWT_SECRET", "environment variable holding the HMAC secret")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: token takes the caller address", errUsage)
	}
	caller, err := crypto.ParseAddress(fs.Arg(0))
	if err != nil {
		return err
	}
	secret := strings.TrimSpace(getenv(*secretEnv))
	if secret == "" {
		return errors.New(*secretEnv + " is not set")
	}
	signed, err := middleware.IssueToken(middleware.AuthConfig{HMACSecret: secret, Issuer: *issuer, Audience: *audience}, caller, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, signed)
	return err
}
