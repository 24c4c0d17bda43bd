package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stakeledger/crypto"
)

const defaultAPI = "http://localhost:8645"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func apiFlags(name string, getenv env) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	def := strings.TrimSpace(getenv("STAKE_API_URL"))
	if def == "" {
		def = defaultAPI
	}
	return fs, fs.String("api", def, "stakerd base URL")
}

func read(args []string, out io.Writer, getenv env) error {
	fs, api := apiFlags("read", getenv)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: read takes one account", errUsage)
	}
	account, err := crypto.ParseAddress(fs.Arg(0))
	if err != nil {
		return err
	}
	return getJSON(*api, "/v1/accounts/"+url.PathEscape(account.Hex()), out)
}

func liquidity(args []string, out io.Writer, getenv env) error {
	fs, api := apiFlags("liquidity", getenv)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return getJSON(*api, "/v1/liquidity", out)
}

// getJSON fetches path and pretty-prints the body. Non-2xx responses are
// returned as errors carrying the API error message.
func getJSON(base, path string, out io.Writer) error {
	resp, err := httpClient.Get(strings.TrimRight(base, "/") + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}
