package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/iudanet/scenesync/internal/filter"
)

func (c *Cli) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.io)
	return fs
}

// runFilter: filter [-state] IN OUT
func (c *Cli) runFilter(args []string) error {
	fs := c.newFlagSet("filter")
	state := fs.Bool("state", false, "Input is a state response [kind][addrLen][addr][frames]")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: filter [-state] IN OUT", ErrUsage)
	}
	in, out := fs.Arg(0), fs.Arg(1)

	input, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	output := make([]byte, len(input))
	var n int
	if *state {
		n, err = filter.FilterCRDTState(input, output)
	} else {
		n, err = filter.FilterSceneMessageBatch(input, output)
	}
	if err != nil {
		if n == 0 {
			return fmt.Errorf("failed to filter %s: %w", in, err)
		}
		// Кадры до поврежденного сохраняются
		c.io.Printf("Warning: input is truncated after %d bytes: %v\n", n, err)
	}

	if err := os.WriteFile(out, output[:n], 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	c.io.Printf("Kept %d of %d bytes\n", n, len(input))
	return nil
}
