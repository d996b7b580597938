package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ara/internal/render"
)

type renderOptions struct {
	template string
	dataFile string
	sets     []string
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template string through the report filters",
		Long: `Render a Go template string with the report filters installed.

Example:
  ara render --template '{{ .path | pathtruncate }}' --set path=/a/very/long/path.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, ro)
		},
	}
	cmd.Flags().StringVarP(&ro.template, "template", "t", "", "Template source (required)")
	cmd.Flags().StringVarP(&ro.dataFile, "data", "d", "", "JSON or YAML file with template data")
	cmd.Flags().StringArrayVar(&ro.sets, "set", nil, "Set a template variable (key=value), repeatable")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func runRender(cmd *cobra.Command, opts *rootOptions, ro *renderOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := loadRenderData(ro.dataFile, ro.sets)
	if err != nil {
		return err
	}

	env, err := render.New(cfg.PathMax)
	if err != nil {
		return err
	}
	out, err := env.RenderString(ro.template, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

// loadRenderData reads the optional data file, then applies key=value pairs on top.
func loadRenderData(path string, sets []string) (map[string]any, error) {
	data := map[string]any{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read data %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			err = json.Unmarshal(raw, &data)
		default:
			err = yaml.Unmarshal(raw, &data)
		}
		if err != nil {
			return nil, fmt.Errorf("parse data %s: %w", path, err)
		}
	}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", kv)
		}
		data[k] = v
	}
	return data, nil
}
