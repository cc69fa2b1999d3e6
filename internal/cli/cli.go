// Package cli implements the crdtctl commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/scenesync/internal/cli/api"
	"github.com/iudanet/scenesync/internal/cli/iocli"
	"github.com/iudanet/scenesync/internal/config"
	"github.com/iudanet/scenesync/internal/storage/boltdb"
)

// ErrUsage is returned for a wrong command line.
var ErrUsage = errors.New("usage error")

// Cli выполняет команды crdtctl
type Cli struct {
	io        iocli.IO
	apiClient *api.Client
	logger    *slog.Logger
	cfg       *config.CLI
}

// New создает Cli
func New(io iocli.IO, apiClient *api.Client, cfg *config.CLI, logger *slog.Logger) *Cli {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cli{
		io:        io,
		apiClient: apiClient,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run выполняет команду args[0] с аргументами args[1:]
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "filter":
		return c.runFilter(rest)
	case "decode":
		return c.runDecode(rest)
	case "token":
		return c.runToken(ctx, rest)
	case "state":
		return c.runState(ctx, rest)
	case "join":
		return c.runJoin(ctx, rest)
	case "snapshot":
		return c.runSnapshot(ctx, rest)
	case "help":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}

// token возвращает токен из конфигурации или спрашивает его у пользователя
func (c *Cli) token() (string, error) {
	if c.cfg.Token != "" {
		return c.cfg.Token, nil
	}

	token, err := c.io.ReadPassword("Relay token: ")
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return "", errors.New("token is required (-token, SCENESYNC_TOKEN or prompt)")
	}
	return token, nil
}

func (c *Cli) openStorage(ctx context.Context) (*boltdb.Storage, error) {
	s, err := boltdb.New(ctx, c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache %s: %w", c.cfg.DBPath, err)
	}
	return s, nil
}

// PrintUsage печатает справку
func (c *Cli) PrintUsage() {
	c.io.Println("crdtctl - scene CRDT tooling")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  crdtctl [OPTIONS] COMMAND [ARGS]")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  -version                 Show version information")
	c.io.Println("  -server URL              Relay URL (default: http://localhost:8080, env SCENESYNC_SERVER)")
	c.io.Println("  -db PATH                 Local scene cache (default: crdtctl.db, env SCENESYNC_CLI_DB)")
	c.io.Println("  -token TOKEN             Relay token (env SCENESYNC_TOKEN, prompt as fallback)")
	c.io.Println("  -log-level LEVEL         debug, info, warn, error")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  filter [-state] IN OUT   Strip no-sync components from a CRDT batch or state response")
	c.io.Println("  decode [-frames] FILE    Print the messages of a comms message or bare frames")
	c.io.Println("  token -address ADDR      Request a relay token for a peer address")
	c.io.Println("  state -scene ID          Show the relay copy of a scene")
	c.io.Println("  join -scene ID           Join a scene through the relay and follow its changes")
	c.io.Println("  snapshot [-scene ID]     Show the local cache of a scene, or list cached scenes")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  export SCENESYNC_TOKEN=$(crdtctl token -address 0xalice)")
	c.io.Println("  crdtctl join -scene plaza -put 512:1:hello -duration 10s")
	c.io.Println("  crdtctl filter batch.bin batch.filtered.bin")
}
