// Command stake-cli manages authority keys, signs authorizations and queries
// a running stakerd.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const usage = `usage: stake-cli <command> [flags] [args]

commands:
  keygen   --keystore PATH                       create an authority keystore
  address  ADDRESS                               print hex and bech32 forms
  digest   --ledger PATH KIND ACCOUNT AMOUNT      print the authorization digest
  sign     --ledger PATH --keystore PATH KIND ACCOUNT AMOUNT
                                                 sign an authorization
  token    --secret-env VAR [--issuer I] [--ttl D] CALLER
                                                 mint an API bearer token
  read     [--api URL] ACCOUNT                   show an account record
  liquidity [--api URL]                          show custody liquidity

KIND is one of unstake, reward or penalty (alias slash).
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "stake-cli: %v\n", err)
		os.Exit(1)
	}
}

// env resolves environment variables; tests replace os.Getenv.
type env func(string) string

func run(args []string, out io.Writer, getenv env) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "keygen":
		return keygen(rest, out, getenv)
	case "address":
		return address(rest, out)
	case "digest":
		return digest(rest, out)
	case "sign":
		return sign(rest, out, getenv)
	case "token":
		return token(rest, out, getenv)
	case "read":
		return read(rest, out, getenv)
	case "liquidity":
		return liquidity(rest, out, getenv)
	case "help", "-h", "--help":
		_, err := fmt.Fprint(out, usage)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
