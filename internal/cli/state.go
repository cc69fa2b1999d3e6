package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/iudanet/scenesync/internal/validation"
)

// runState: state -scene ID [-out FILE]
func (c *Cli) runState(ctx context.Context, args []string) error {
	fs := c.newFlagSet("state")
	sceneID := fs.String("scene", "", "Scene id")
	out := fs.String("out", "", "Write the raw CRDT batch to FILE instead of printing it")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := validation.ValidateSceneID(*sceneID); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	token, err := c.token()
	if err != nil {
		return err
	}

	body, err := c.apiClient.SceneState(ctx, token, *sceneID)
	if err != nil {
		return err
	}

	if *out != "" {
		if err := os.WriteFile(*out, body, 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		c.io.Printf("Wrote %d bytes to %s\n", len(body), *out)
		return nil
	}

	c.io.Printf("=== Scene %s ===\n", *sceneID)
	return c.printComms(body)
}
