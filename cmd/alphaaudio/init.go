package main

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/alphaaudio/internal/catalog"
)

//go:embed templates/*
var templates embed.FS

type scaffoldData struct {
	DataDir string
	Models  []string
}

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a starter data directory and config",
	Long: `Writes a config file, the default role prompts, the model list and
sample catalogs into <dir>. Existing files are kept unless --force is given.

Example:
  alphaaudio init ~/.local/share/alphaaudio/data`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return scaffold(out, dir, initForce)
}

// scaffold writes the starter files into dir.
func scaffold(out io.Writer, dir string, force bool) error {
	if err := os.MkdirAll(filepath.Join(dir, "prompts"), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	data := scaffoldData{
		DataDir: dir,
		Models:  catalog.DefaultModels,
	}

	files := map[string]string{
		"templates/config.yaml.tmpl":      "config.yaml",
		"templates/models.json.tmpl":      "models.json",
		"templates/subwoofers.json.tmpl":  "subwoofers.json",
		"templates/amplifiers.json.tmpl":  "amplifiers.json",
		"templates/batteries.json.tmpl":   "batteries.json",
		"templates/alternators.json.tmpl": "alternators.json",
		"templates/head_units.json.tmpl":  "head_units.json",
		"templates/processors.json.tmpl":  "processors.json",
	}

	for tmplPath, name := range files {
		outPath := filepath.Join(dir, name)
		written, err := generateFile(tmplPath, outPath, data, force)
		if err != nil {
			return fmt.Errorf("generating %s: %w", outPath, err)
		}
		report(out, outPath, written)
	}

	prompts, err := yaml.Marshal(catalog.DefaultTemplates())
	if err != nil {
		return fmt.Errorf("encoding prompts: %w", err)
	}
	promptsPath := filepath.Join(dir, "prompts.yaml")
	written, err := writeFile(promptsPath, prompts, force)
	if err != nil {
		return fmt.Errorf("writing %s: %w", promptsPath, err)
	}
	report(out, promptsPath, written)

	fmt.Fprintf(out, "\nNext steps:\n")
	fmt.Fprintf(out, "1. export GEMINI_API_KEY=...\n")
	fmt.Fprintf(out, "2. export ALPHAAUDIO_CONFIG=%s\n", filepath.Join(dir, "config.yaml"))
	fmt.Fprintf(out, "3. alphaaudio probe\n")
	fmt.Fprintf(out, "4. alphaaudio serve\n")
	return nil
}

func report(out io.Writer, path string, written bool) {
	if written {
		fmt.Fprintf(out, "created %s\n", path)
	} else {
		fmt.Fprintf(out, "kept    %s\n", path)
	}
}

func generateFile(tmplPath, outPath string, data scaffoldData, force bool) (bool, error) {
	tmplContent, err := templates.ReadFile(tmplPath)
	if err != nil {
		return false, err
	}

	tmpl, err := template.New(filepath.Base(tmplPath)).Parse(string(tmplContent))
	if err != nil {
		return false, err
	}

	if !force {
		if _, err := os.Stat(outPath); err == nil {
			return false, nil
		}
	}

	file, err := os.Create(outPath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	if err := tmpl.Execute(file, data); err != nil {
		return false, err
	}
	return true, nil
}

func writeFile(path string, content []byte, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, err
		}
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return false, err
	}
	return true, nil
}
