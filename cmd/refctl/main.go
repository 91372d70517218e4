// Command refctl talks to a running oracle server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"stdref/internal/auth"
	"stdref/internal/client"
	"stdref/internal/config"
	"stdref/internal/httpx"
	"stdref/internal/oracle"
	"stdref/internal/wire"
)

const usage = `usage: refctl [flags] <command> [args]

commands:
  admin                               print the current admin
  is-relayer <id>                     report whether id may relay
  transfer <new-admin>                hand admin rights to new-admin
  grant <id>...                       add relayers
  revoke <id>...                      remove relayers
  relay [-time T] [-id N] SYM=RATE... relay decimal rates, e.g. BTC=27000.5
  force-relay [...]                   relay ignoring staleness
  reference <base> <quote>            query one cross rate
  bulk <base/quote>...                query many cross rates
  upgrade <code-hash>                 record a 32 byte hex code hash
  code-hash                           print the recorded code hash
  contract-id                         print the oracle instance id
  token [-ttl D] <id>                 issue a bearer token from auth.secret
`

var errUsage = errors.New("bad usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "refctl: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    config.Config
	client *client.Client
	out    io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("refctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath = fs.String("config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
		endpoint   = fs.String("endpoint", "", "oracle base URL, defaults to relayer.endpoint")
		token      = fs.String("token", os.Getenv("REFCTL_TOKEN"), "bearer token for state-changing commands")
		timeout    = fs.Duration("timeout", 15*time.Second, "request timeout")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if *endpoint == "" {
		*endpoint = cfg.Relayer.Endpoint
	}

	opts := []client.Option{
		client.WithBaseURL(*endpoint),
		client.WithHTTPClient(httpx.New(*timeout).Standard()),
	}
	if *token != "" {
		opts = append(opts, client.WithToken(*token))
	}
	c, err := client.New(opts...)
	if err != nil {
		return err
	}

	e := &env{cfg: cfg, client: c, out: out}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "admin":
		return e.admin(ctx)
	case "is-relayer":
		return e.isRelayer(ctx, rest)
	case "transfer":
		return e.transfer(ctx, rest)
	case "grant":
		return e.relayers(ctx, rest, c.GrantRelayers)
	case "revoke":
		return e.relayers(ctx, rest, c.RevokeRelayers)
	case "relay":
		return e.relay(ctx, rest, c.Relay)
	case "force-relay":
		return e.relay(ctx, rest, c.ForceRelay)
	case "reference":
		return e.reference(ctx, rest)
	case "bulk":
		return e.bulk(ctx, rest)
	case "upgrade":
		return e.upgrade(ctx, rest)
	case "code-hash":
		return e.codeHash(ctx)
	case "contract-id":
		return e.contractID(ctx)
	case "token":
		return e.token(rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (e *env) admin(ctx context.Context) error {
	id, err := e.client.CurrentAdmin(ctx)
	if err != nil {
		return err
	}
	return e.print(wire.AdminResponse{Admin: id})
}

func (e *env) isRelayer(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: is-relayer takes one id", errUsage)
	}
	ok, err := e.client.IsRelayer(ctx, args[0])
	if err != nil {
		return err
	}
	return e.print(wire.RelayerResponse{Relayer: args[0], IsRelayer: ok})
}

func (e *env) transfer(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: transfer takes one id", errUsage)
	}
	if err := e.client.TransferAdmin(ctx, args[0]); err != nil {
		return err
	}
	return e.print(wire.StatusResponse{Status: "ok"})
}

func (e *env) relayers(ctx context.Context, args []string, apply func(context.Context, []string) error) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one id required", errUsage)
	}
	if err := apply(ctx, args); err != nil {
		return err
	}
	return e.print(wire.StatusResponse{Status: "ok"})
}

func (e *env) relay(ctx context.Context, args []string, submit func(context.Context, wire.RelayRequest) error) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	resolveTime := fs.Uint64("time", uint64(time.Now().Unix()), "resolve time in unix seconds")
	requestID := fs.Uint64("id", 0, "request id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	prices, err := parsePrices(fs.Args())
	if err != nil {
		return err
	}

	req := wire.RelayRequest{
		Prices:      prices,
		ResolveTime: wire.UInt64Str(*resolveTime),
		RequestID:   wire.UInt64Str(*requestID),
	}
	if err := submit(ctx, req); err != nil {
		return err
	}
	return e.print(req)
}

// parsePrices reads SYMBOL=RATE pairs with human decimal rates.
func parsePrices(args []string) ([]wire.Price, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one SYMBOL=RATE required", errUsage)
	}
	prices := make([]wire.Price, 0, len(args))
	for _, a := range args {
		sym, raw, ok := strings.Cut(a, "=")
		if !ok || sym == "" {
			return nil, fmt.Errorf("%w: expected SYMBOL=RATE, got %q", errUsage, a)
		}
		rate, err := wire.ParseRate(raw)
		if err != nil {
			return nil, err
		}
		prices = append(prices, wire.Price{Symbol: sym, Rate: wire.UInt64Str(rate)})
	}
	return prices, nil
}

// quote is a cross rate with its human decimal form alongside.
type quote struct {
	wire.ReferenceData
	Price string `json:"price"`
}

func humanize(d wire.ReferenceData) (quote, error) {
	p, err := wire.FormatRate(d.Rate, 18)
	if err != nil {
		return quote{}, err
	}
	return quote{ReferenceData: d, Price: p}, nil
}

func (e *env) reference(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: reference takes <base> <quote>", errUsage)
	}
	d, err := e.client.GetReferenceData(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	q, err := humanize(d)
	if err != nil {
		return err
	}
	return e.print(q)
}

func (e *env) bulk(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one base/quote pair required", errUsage)
	}
	pairs := make([]wire.Pair, 0, len(args))
	for _, a := range args {
		base, q, ok := strings.Cut(a, "/")
		if !ok {
			return fmt.Errorf("%w: expected BASE/QUOTE, got %q", errUsage, a)
		}
		pairs = append(pairs, wire.Pair{Base: base, Quote: q})
	}

	items, err := e.client.GetReferenceDataBulk(ctx, pairs)
	if err != nil {
		return err
	}
	type row struct {
		Pair  string `json:"pair"`
		Quote *quote `json:"quote,omitempty"`
		Error string `json:"error,omitempty"`
	}
	rows := make([]row, len(items))
	for i, it := range items {
		rows[i].Pair = args[i]
		if it.Data == nil {
			rows[i].Error = it.Error
			continue
		}
		q, err := humanize(*it.Data)
		if err != nil {
			return err
		}
		rows[i].Quote = &q
	}
	return e.print(rows)
}

func (e *env) upgrade(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: upgrade takes one code hash", errUsage)
	}
	h, err := e.client.ReplaceCode(ctx, args[0])
	if err != nil {
		return err
	}
	return e.print(wire.CodeHashResponse{CodeHash: h})
}

func (e *env) codeHash(ctx context.Context) error {
	h, err := e.client.CodeHash(ctx)
	if err != nil {
		return err
	}
	return e.print(wire.CodeHashResponse{CodeHash: h})
}

func (e *env) contractID(ctx context.Context) error {
	id, err := e.client.ContractID(ctx)
	if err != nil {
		return err
	}
	return e.print(wire.ContractResponse{ContractID: id})
}

func (e *env) token(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ttl := fs.Duration("ttl", time.Duration(e.cfg.Auth.TokenTTLSec)*time.Second, "token lifetime, 0 for none")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: token takes one id", errUsage)
	}

	signer, err := auth.NewSigner(e.cfg.Auth.Secret, e.cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	tok, err := signer.Issue(oracle.Identity(fs.Arg(0)), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, tok)
	return err
}

