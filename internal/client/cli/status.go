package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runStatus(ctx context.Context) error {
	last, err := c.client.LastSync(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last sync time: %w", err)
	}

	c.io.Println("=== Yoin Client Status ===")
	c.io.Println()
	c.io.Printf("Room:       %s\n", c.client.Room())
	c.io.Printf("Client ID:  %d\n", c.client.ClientID())
	if last.IsZero() {
		c.io.Println("Last sync:  never")
	} else {
		c.io.Printf("Last sync:  %s\n", last.Format(time.RFC3339))
	}

	infos, err := c.client.Containers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	c.io.Printf("Containers: %d\n", len(infos))
	c.io.Printf("Undo/redo:  %t/%t\n", c.client.CanUndo(), c.client.CanRedo())
	return nil
}
