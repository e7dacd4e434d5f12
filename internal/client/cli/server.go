package cli

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoServerAPI возвращается командами health и rooms без ServerAPI
var ErrNoServerAPI = errors.New("server api is not configured")

func (c *Cli) runHealth(ctx context.Context) error {
	if c.server == nil {
		return ErrNoServerAPI
	}
	health, err := c.server.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to get server health: %w", err)
	}
	c.io.Printf("Status:  %s\n", health.Status)
	if health.Version != "" {
		c.io.Printf("Version: %s\n", health.Version)
	}
	c.io.Printf("Rooms:   %d open, %d peers\n", health.Rooms, health.Peers)
	return nil
}

func (c *Cli) runRooms(ctx context.Context) error {
	if c.server == nil {
		return ErrNoServerAPI
	}
	rooms, err := c.server.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(rooms) == 0 {
		c.io.Println("No rooms")
		return nil
	}

	c.io.Printf("%-24s %-6s %-6s %-10s %s\n", "ROOM", "LIVE", "PEERS", "SIZE", "UPDATED")
	for _, r := range rooms {
		updated := "-"
		if r.UpdatedAt != nil {
			updated = r.UpdatedAt.Local().Format(time.DateTime)
		}
		live := "no"
		if r.Live {
			live = "yes"
		}
		c.io.Printf("%-24s %-6s %-6d %-10d %s\n", r.RoomID, live, r.Peers, r.Size, updated)
	}
	return nil
}
