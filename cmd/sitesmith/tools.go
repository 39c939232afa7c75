package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/forgeline/sitesmith/pkg/registry"
	"github.com/forgeline/sitesmith/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the built-in tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tk, err := tools.New(tools.Options{Root: cfg.Workspace.Root})
		if err != nil {
			return err
		}
		reg := registry.New()
		if err := tk.RegisterAll(reg); err != nil {
			return err
		}

		for _, info := range reg.List() {
			fmt.Printf("%-18s %s\n", info.Name, info.Description)
			if info.Parameters == nil {
				continue
			}
			names := make([]string, 0, len(info.Parameters.Properties))
			for name := range info.Parameters.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				req := ""
				if contains(info.Parameters.Required, name) {
					req = " (required)"
				}
				fmt.Printf("    %-14s %s%s\n", name, info.Parameters.Properties[name].Type, req)
			}
		}
		return nil
	},
}

func contains(items []string, name string) bool {
	for _, item := range items {
		if item == name {
			return true
		}
	}
	return false
}
