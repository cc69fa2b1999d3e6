package cli

import (
	"fmt"
	"os"

	"github.com/iudanet/scenesync/internal/protocol"
)

// runDecode: decode [-frames] FILE
func (c *Cli) runDecode(args []string) error {
	fs := c.newFlagSet("decode")
	frames := fs.Bool("frames", false, "Input is a bare sequence of frames without kind tag")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: decode [-frames] FILE", ErrUsage)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	if *frames {
		return c.printFrames(data)
	}
	return c.printComms(data)
}

// printComms печатает comms сообщение любого вида
func (c *Cli) printComms(data []byte) error {
	if len(data) == 0 {
		c.io.Println("Empty message")
		return nil
	}

	kind := protocol.CommsKind(data[0])
	switch kind {
	case protocol.CommsCRDT:
		c.io.Printf("Kind: %s\n", kind)
		return c.printFrames(data[1:])
	case protocol.CommsResCRDTState:
		env, err := protocol.ParseStateEnvelope(data)
		if err != nil {
			return err
		}
		c.io.Printf("Kind: %s, address: %q\n", kind, env.Address)
		return c.printFrames(env.Payload)
	default:
		c.io.Printf("Kind: %s, %d bytes\n", kind, len(data)-1)
		return nil
	}
}

func (c *Cli) printFrames(data []byte) error {
	d := protocol.NewDecoder(data)
	count := 0
	for d.Next() {
		c.io.Println(formatMessage(d.Frame().Message))
		count++
	}

	c.io.Printf("%d message(s)\n", count)
	if err := d.Err(); err != nil {
		return fmt.Errorf("decoding stopped at offset %d: %w", d.Offset(), err)
	}
	return nil
}
