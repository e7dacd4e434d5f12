package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/yoin/internal/document"
)

func (c *Cli) runShow(ctx context.Context, args []string) error {
	fs := c.flags("show")
	if err := fs.Parse(args); err != nil {
		return usage("show [NAME...]")
	}

	infos, err := c.client.Containers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	kinds := make(map[string]document.Kind, len(infos))
	for _, info := range infos {
		kinds[info.Name] = info.Kind
	}

	names := fs.Args()
	if len(names) == 0 {
		for _, info := range infos {
			names = append(names, info.Name)
		}
	}

	c.io.Printf("=== Room %s ===\n", c.client.Room())
	for _, name := range names {
		kind, ok := kinds[name]
		if !ok {
			return fmt.Errorf("container %q not found", name)
		}
		if err := c.printContainer(ctx, name, kind); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cli) printContainer(ctx context.Context, name string, kind document.Kind) error {
	c.io.Println()
	c.io.Printf("%s (%s):\n", name, kind)

	var value any
	var err error
	switch kind {
	case document.KindText:
		text, err := c.client.Text(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		c.io.Println(text)
		return nil
	case document.KindMap:
		value, err = c.client.Map(ctx, name)
	case document.KindArray:
		value, err = c.client.Array(ctx, name)
	default:
		return fmt.Errorf("container %q has unknown kind %s", name, kind)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return c.printJSON(value)
}

// printJSON печатает значение с отступами в терминал и одной строкой в pipe.
func (c *Cli) printJSON(v any) error {
	var data []byte
	var err error
	if c.io.IsTerminal() {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	_, err = c.io.Write(append(data, '\n'))
	return err
}
