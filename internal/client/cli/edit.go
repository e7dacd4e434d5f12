package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/iudanet/yoin/internal/document"
)

const defaultArrayName = "items"

func (c *Cli) runInsert(ctx context.Context, args []string) error {
	const format = "insert [-c NAME] INDEX TEXT"
	fs := c.flags("insert")
	name := fs.String("c", document.DefaultTextName, "text container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return usage(format)
	}
	index, err := atoi("INDEX", fs.Arg(0))
	if err != nil {
		return err
	}
	if err := c.client.InsertText(ctx, *name, index, fs.Arg(1)); err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	c.io.Printf("Inserted %d characters into %s\n", len([]rune(fs.Arg(1))), *name)
	return nil
}

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	const format = "delete [-c NAME] INDEX LENGTH"
	fs := c.flags("delete")
	name := fs.String("c", document.DefaultTextName, "text container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return usage(format)
	}
	index, err := atoi("INDEX", fs.Arg(0))
	if err != nil {
		return err
	}
	length, err := atoi("LENGTH", fs.Arg(1))
	if err != nil {
		return err
	}
	if err := c.client.DeleteText(ctx, *name, index, length); err != nil {
		return fmt.Errorf("failed to delete text: %w", err)
	}
	c.io.Printf("Deleted %d characters from %s\n", length, *name)
	return nil
}

func (c *Cli) runClear(ctx context.Context, args []string) error {
	fs := c.flags("clear")
	name := fs.String("c", document.DefaultTextName, "text container")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return usage("clear [-c NAME] [-y]")
	}

	if !*yes {
		answer, err := c.io.ReadInput(fmt.Sprintf("Delete all text in %s? [y/N]: ", *name))
		if err != nil {
			return fmt.Errorf("failed to read answer: %w", err)
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			c.io.Println("Cancelled")
			return nil
		}
	}
	if err := c.client.ClearText(ctx, *name); err != nil {
		return fmt.Errorf("failed to clear text: %w", err)
	}
	c.io.Printf("Cleared %s\n", *name)
	return nil
}

func (c *Cli) runSet(ctx context.Context, args []string) error {
	fs := c.flags("set")
	name := fs.String("c", document.DefaultMapName, "map container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return usage("set [-c NAME] KEY VALUE")
	}
	key := fs.Arg(0)
	if err := c.client.SetMap(ctx, *name, key, ParseValue(fs.Arg(1))); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", *name, key, err)
	}
	c.io.Printf("Set %s.%s\n", *name, key)
	return nil
}

func (c *Cli) runUnset(ctx context.Context, args []string) error {
	fs := c.flags("unset")
	name := fs.String("c", document.DefaultMapName, "map container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usage("unset [-c NAME] KEY")
	}
	key := fs.Arg(0)
	if err := c.client.DeleteMap(ctx, *name, key); err != nil {
		return fmt.Errorf("failed to delete %s.%s: %w", *name, key, err)
	}
	c.io.Printf("Deleted %s.%s\n", *name, key)
	return nil
}

func (c *Cli) runSetDeep(ctx context.Context, args []string) error {
	fs := c.flags("set-deep")
	name := fs.String("c", document.DefaultMapName, "map container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return usage("set-deep [-c NAME] PATH VALUE")
	}
	path := strings.Split(fs.Arg(0), ".")
	for _, seg := range path {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in path %q", ErrUsage, fs.Arg(0))
		}
	}
	if err := c.client.SetDeep(ctx, *name, path, ParseValue(fs.Arg(1))); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", *name, fs.Arg(0), err)
	}
	c.io.Printf("Set %s.%s\n", *name, fs.Arg(0))
	return nil
}

func (c *Cli) runPush(ctx context.Context, args []string) error {
	fs := c.flags("push")
	name := fs.String("c", defaultArrayName, "array container")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usage("push [-c NAME] VALUE")
	}
	if err := c.client.Push(ctx, *name, ParseValue(fs.Arg(0))); err != nil {
		return fmt.Errorf("failed to push to %s: %w", *name, err)
	}
	c.io.Printf("Appended to %s\n", *name)
	return nil
}

func (c *Cli) runRemove(ctx context.Context, args []string) error {
	const format = "remove [-c NAME] INDEX [LENGTH]"
	fs := c.flags("remove")
	name := fs.String("c", defaultArrayName, "array container")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 || fs.NArg() > 2 {
		return usage(format)
	}
	index, err := atoi("INDEX", fs.Arg(0))
	if err != nil {
		return err
	}
	length := 1
	if fs.NArg() == 2 {
		if length, err = atoi("LENGTH", fs.Arg(1)); err != nil {
			return err
		}
	}
	if err := c.client.DeleteArray(ctx, *name, index, length); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", *name, err)
	}
	c.io.Printf("Removed %d items from %s\n", length, *name)
	return nil
}
