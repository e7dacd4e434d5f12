package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/yoin/internal/client/network"
	"github.com/iudanet/yoin/internal/document"
)

// ErrSyncTimeout возвращается, если рукопожатие не завершилось вовремя
var ErrSyncTimeout = errors.New("sync timed out")

func (c *Cli) runSync(ctx context.Context, args []string) error {
	fs := c.flags("sync")
	timeout := fs.Duration("timeout", c.syncTimeout, "handshake timeout")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return usage("sync [-timeout D]")
	}

	c.io.Printf("Syncing room %s...\n", c.client.Room())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.client.Run(runCtx) }()

	timer := time.NewTimer(*timeout)
	defer timer.Stop()

	select {
	case <-c.client.Synced():
	case err := <-done:
		if err == nil {
			err = ctx.Err()
		}
		return fmt.Errorf("sync failed: %w", err)
	case <-timer.C:
		cancel()
		<-done
		return fmt.Errorf("%w after %s", ErrSyncTimeout, *timeout)
	}

	cancel()
	if err := <-done; err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	c.io.Printf("✓ Room %s is in sync\n", c.client.Room())
	return nil
}

func (c *Cli) runWatch(ctx context.Context, args []string) error {
	fs := c.flags("watch")
	name := fs.String("c", document.DefaultTextName, "text container to print")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return usage("watch [-c NAME]")
	}

	// колбэк вызывается под блокировкой документа, читаем текст в цикле ниже
	changed := make(chan struct{}, 1)
	unsubscribe := c.client.OnChange(func(document.Origin) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.client.OnStatusChange(func(s network.Status) {
		c.io.Printf("[%s]\n", s)
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.client.Run(runCtx) }()

	if err := c.printText(ctx, *name); err != nil {
		cancel()
		<-done
		return err
	}
	for {
		select {
		case <-changed:
			if err := c.printText(ctx, *name); err != nil {
				cancel()
				<-done
				return err
			}
		case err := <-done:
			return err
		}
	}
}

func (c *Cli) printText(ctx context.Context, name string) error {
	text, err := c.client.Text(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	c.io.Printf("--- %s ---\n", name)
	c.io.Println(text)
	return nil
}
