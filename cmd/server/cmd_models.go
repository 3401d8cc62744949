package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"gwi.com/ai-stylist/internal/registry"
)

// ModelsCmd is the admin path for the global model selection without going through HTTP.
type ModelsCmd struct {
	List    ModelsListCmd    `cmd:"" help:"List the models in the registry"`
	Current ModelsCurrentCmd `cmd:"" help:"Show the model all users are currently served by"`
	Set     ModelsSetCmd     `cmd:"" help:"Change the global model"`
}

type ModelsListCmd struct {
	Format string `help:"Output format (table, json)" default:"table" enum:"table,json"`
}

func (c *ModelsListCmd) Run(logger *slog.Logger) error {
	d, err := setup(logger)
	if err != nil {
		return err
	}
	defer d.close()

	reg := d.models.Registry()
	active := d.models.GetSelection(context.Background())
	if c.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reg.List())
	}
	return printModelsTable(reg.List(), active.ID)
}

func printModelsTable(models []registry.ModelDescriptor, activeID string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tTIER\tQUALITY\tSPEED\tCAPABILITIES\t")
	for _, m := range models {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		id := m.ID
		if m.IsRecommended {
			id += " (recommended)"
		}
		if m.ID == activeID {
			id = "* " + id
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t\n", id, m.Provider, m.Tier, m.Quality, m.Speed, strings.Join(caps, ","))
	}
	return w.Flush()
}

type ModelsCurrentCmd struct{}

func (c *ModelsCurrentCmd) Run(logger *slog.Logger) error {
	d, err := setup(logger)
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Println(d.models.GetSelection(context.Background()).ID)
	return nil
}

type ModelsSetCmd struct {
	Model string `arg:"" help:"Model ID to serve all users with"`
}

func (c *ModelsSetCmd) Run(logger *slog.Logger) error {
	d, err := setup(logger)
	if err != nil {
		return err
	}
	defer d.close()

	ctx := context.Background()
	if err := d.models.SetSelection(ctx, c.Model); err != nil {
		return err
	}
	resolved := d.models.GetSelection(ctx)
	if resolved.ID != c.Model {
		fmt.Fprintf(os.Stderr, "warning: %q is not in the registry, users will get %q\n", c.Model, resolved.ID)
	}
	fmt.Println(resolved.ID)
	return nil
}
