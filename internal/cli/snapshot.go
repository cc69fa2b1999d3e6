package cli

import (
	"context"
	"fmt"
)

// runSnapshot: snapshot [-scene ID]
func (c *Cli) runSnapshot(ctx context.Context, args []string) error {
	fs := c.newFlagSet("snapshot")
	sceneID := fs.String("scene", "", "Scene id, empty to list cached scenes")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	store, err := c.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.logger.Error("failed to close local cache", "error", err)
		}
	}()

	if *sceneID == "" {
		scenes, err := store.ListScenes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list scenes: %w", err)
		}
		if len(scenes) == 0 {
			c.io.Println("No cached scenes.")
			return nil
		}
		c.io.Printf("Found %d scene(s):\n", len(scenes))
		for _, id := range scenes {
			c.io.Println("  " + id)
		}
		return nil
	}

	state, err := store.LoadScene(ctx, *sceneID)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}

	c.io.Printf("=== Scene %s ===\n", *sceneID)
	if state.Empty() {
		c.io.Println("No entries.")
		return nil
	}
	for _, entry := range state.Entries {
		c.io.Println(formatEntry(entry))
	}
	for _, id := range state.DeletedEntities {
		c.io.Printf("entity=%d deleted\n", id)
	}
	c.io.Printf("%d entries, %d deleted entities\n", len(state.Entries), len(state.DeletedEntities))
	return nil
}
