package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/scenesync/internal/validation"
)

// runToken: token -address ADDR
func (c *Cli) runToken(ctx context.Context, args []string) error {
	fs := c.newFlagSet("token")
	address := fs.String("address", "", "Peer address the token is issued for")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if *address == "" {
		input, err := c.io.ReadInput("Peer address: ")
		if err != nil {
			return fmt.Errorf("failed to read address: %w", err)
		}
		*address = input
	}
	if err := validation.ValidateAddress(*address); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	resp, err := c.apiClient.IssueToken(ctx, *address)
	if err != nil {
		return err
	}

	// Только токен, чтобы вывод можно было подставить в переменную окружения
	c.io.Println(resp.AccessToken)
	return nil
}
