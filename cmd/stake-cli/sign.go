package main

import (
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"stakeledger/config"
	"stakeledger/crypto"
	"stakeledger/native/staking"
)

type authorization struct {
	kind    staking.Kind
	account common.Address
	amount  *big.Int
}

func parseAuthorization(args []string) (authorization, error) {
	if len(args) != 3 {
		return authorization{}, fmt.Errorf("%w: expected KIND ACCOUNT AMOUNT", errUsage)
	}
	kind, err := staking.ParseKind(args[0])
	if err != nil {
		return authorization{}, err
	}
	account, err := crypto.ParseAddress(args[1])
	if err != nil {
		return authorization{}, fmt.Errorf("account: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(args[2]), 10)
	if !ok || amount.Sign() <= 0 {
		return authorization{}, fmt.Errorf("amount must be a positive integer, got %q", args[2])
	}
	return authorization{kind: kind, account: account, amount: amount}, nil
}

// loadDomain reads the signing domain from an existing ledger file.
func loadDomain(path string) (staking.Domain, error) {
	if strings.TrimSpace(path) == "" {
		return staking.Domain{}, fmt.Errorf("%w: --ledger is required", errUsage)
	}
	if _, err := os.Stat(path); err != nil {
		return staking.Domain{}, fmt.Errorf("ledger config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return staking.Domain{}, err
	}
	ledger, err := cfg.Resolve()
	if err != nil {
		return staking.Domain{}, err
	}
	return ledger.Staking.Domain, nil
}

func digest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ledgerPath := fs.String("ledger", "ledger.toml", "ledger configuration file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	auth, err := parseAuthorization(fs.Args())
	if err != nil {
		return err
	}
	domain, err := loadDomain(*ledgerPath)
	if err != nil {
		return err
	}
	hash, err := staking.TypedDigest(staking.DomainSeparator(domain), auth.kind, auth.account, auth.amount)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash.Hex())
	return err
}

func sign(args []string, out io.Writer, _ env) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ledgerPath := fs.String("ledger", "ledger.toml", "ledger configuration file")
	keystorePath := fs.String("keystore", "", "authority keystore")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*keystorePath) == "" {
		return fmt.Errorf("%w: --keystore is required", errUsage)
	}
	auth, err := parseAuthorization(fs.Args())
	if err != nil {
		return err
	}
	domain, err := loadDomain(*ledgerPath)
	if err != nil {
		return err
	}
	pass, err := passphrases().Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, pass)
	if err != nil {
		return err
	}
	hash, err := staking.TypedDigest(staking.DomainSeparator(domain), auth.kind, auth.account, auth.amount)
	if err != nil {
		return err
	}
	sig, err := staking.Sign(key, domain, auth.kind, auth.account, auth.amount)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "kind:      %s\naccount:   %s\namount:    %s\ndigest:    %s\nsigner:    %s\nsignature: %s\n",
		auth.kind, auth.account.Hex(), auth.amount, hash.Hex(), key.PubKey().Address().Hex(), hexutil.Encode(sig))
	return err
}
