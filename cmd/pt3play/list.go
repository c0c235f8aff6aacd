package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/satindergrewal/pt3play/internal/config"
)

var (
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// list prints the song catalog. With a local asset directory, missing
// files are flagged.
func list(cfg config.Config, w io.Writer) error {
	source := cfg.AssetDir
	if cfg.AssetURL != "" {
		source = cfg.AssetURL
	}
	yellow.Fprintf(w, "%d songs from %s\n", len(cfg.Songs), source)

	for i, id := range cfg.Songs {
		cyan.Fprintf(w, "%3d  ", i+1)
		fmt.Fprint(w, id)
		if cfg.AssetURL == "" {
			if _, err := os.Stat(filepath.Join(cfg.AssetDir, filepath.FromSlash(id))); err != nil {
				red.Fprint(w, "  (missing)")
			}
		}
		fmt.Fprintln(w)
	}

	yellow.Fprintf(w, "effect bank: %s\n", cfg.EffectBank)
	return nil
}
