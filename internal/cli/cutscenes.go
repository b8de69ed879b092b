package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/sequencer/internal/config"
	"github.com/opencode-ai/sequencer/internal/sequence"
)

var (
	cutscenesListTags []string
	cutscenesNewUser  bool
	cutscenesNewForce bool
	cutscenesNewSeq   string
)

func init() {
	rootCmd.AddCommand(cutscenesCmd)
	cutscenesCmd.AddCommand(cutscenesListCmd)
	cutscenesCmd.AddCommand(cutscenesShowCmd)
	cutscenesCmd.AddCommand(cutscenesNewCmd)

	cutscenesListCmd.Flags().StringSliceVar(&cutscenesListTags, "tag", nil, "only show cutscenes with any of these tags")
	cutscenesNewCmd.Flags().BoolVar(&cutscenesNewUser, "user", false, "write to the user library instead of the project")
	cutscenesNewCmd.Flags().BoolVar(&cutscenesNewForce, "force", false, "overwrite an existing file")
	cutscenesNewCmd.Flags().StringVar(&cutscenesNewSeq, "sequence", "None()", "initial sequence")
}

var cutscenesCmd = &cobra.Command{
	Use:     "cutscenes",
	Aliases: []string{"cs"},
	Short:   "Browse the cutscene library",
	Long: `Browse cutscenes from the project (.sequencer/cutscenes), the user library
(~/.config/sequencer/cutscenes), the system library and the builtins. The
first definition of a name wins.`,
}

var cutscenesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available cutscenes",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := sequence.LoadCutscenesFromSearchPaths(projectDir())
		if err != nil {
			return fmt.Errorf("failed to load cutscenes: %w", err)
		}
		items = filterCutscenes(items, cutscenesListTags)
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No cutscenes found.")
			return nil
		}

		userDir, projDir := cutsceneDirs()
		rows := make([][]string, 0, len(items))
		for _, c := range items {
			rows = append(rows, []string{
				c.Name,
				cutsceneSourceLabel(c.Source, userDir, projDir),
				strings.Join(c.Tags, ","),
				c.Description,
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"NAME", "SOURCE", "TAGS", "DESCRIPTION"}, rows)
	},
}

var cutscenesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a cutscene and its statements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := sequence.LoadCutscenesFromSearchPaths(projectDir())
		if err != nil {
			return fmt.Errorf("failed to load cutscenes: %w", err)
		}
		c := findCutsceneByName(items, args[0])
		if c == nil {
			return &PreflightError{
				Message:  fmt.Sprintf("cutscene %q not found", args[0]),
				NextStep: "sequencer cutscenes list",
			}
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), c)
		}

		out := cmd.OutOrStdout()
		userDir, projDir := cutsceneDirs()
		fmt.Fprintf(out, "Name:        %s\n", c.Name)
		fmt.Fprintf(out, "Source:      %s (%s)\n", cutsceneSourceLabel(c.Source, userDir, projDir), c.Source)
		if c.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", c.Description)
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(out, "Tags:        %s\n", strings.Join(c.Tags, ", "))
		}
		fmt.Fprintf(out, "Sequence:    %s\n", strings.TrimSpace(c.Sequence))

		if len(c.Variables) > 0 {
			fmt.Fprintln(out, "\nVariables:")
			rows := make([][]string, 0, len(c.Variables))
			for _, v := range c.Variables {
				rows = append(rows, []string{v.Name, formatYesNo(v.Required), dashIfEmpty(v.Default), v.Description})
			}
			if err := writeTable(out, []string{"NAME", "REQUIRED", "DEFAULT", "DESCRIPTION"}, rows); err != nil {
				return err
			}
		}

		rendered, err := sequence.RenderCutscene(c, nil)
		if err != nil {
			fmt.Fprintf(out, "\nStatements: needs variables (%v)\n", err)
			return nil
		}
		statements, _ := sequence.Parse(rendered, "")
		fmt.Fprintln(out, "\nStatements:")
		return writeTable(out, []string{"#", "REQUIRED", "COMMAND", "ARGS", "TRIGGER", "END MESSAGE"}, statementRows(statements))
	},
}

var cutscenesNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a cutscene file in the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := normalizeCutsceneName(args[0])
		if err != nil {
			return err
		}
		if _, err := sequence.Parse(cutscenesNewSeq, ""); err != nil {
			return fmt.Errorf("invalid --sequence: %w", err)
		}

		userDir, projDir := cutsceneDirs()
		dir := projDir
		if cutscenesNewUser {
			dir = userDir
		}
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); err == nil && !cutscenesNewForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := yaml.Marshal(&sequence.Cutscene{
			Name:        name,
			Description: name + " cutscene",
			Sequence:    cutscenesNewSeq,
		})
		if err != nil {
			return fmt.Errorf("failed to encode cutscene: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"name": name, "path": path})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}

func projectDir() string {
	if dir := strings.TrimSpace(GetConfig().Cutscenes.ProjectDir); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func cutsceneDirs() (userDir, projDir string) {
	userDir = filepath.Join(config.DefaultConfigDir(), "cutscenes")
	if dir := projectDir(); dir != "" {
		projDir = filepath.Join(dir, ".sequencer", "cutscenes")
	}
	return userDir, projDir
}

func filterCutscenes(items []*sequence.Cutscene, tags []string) []*sequence.Cutscene {
	if len(tags) == 0 {
		return items
	}
	wanted := make(map[string]bool, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(strings.TrimSpace(tag))] = true
	}

	out := make([]*sequence.Cutscene, 0, len(items))
	for _, c := range items {
		for _, tag := range c.Tags {
			if wanted[strings.ToLower(tag)] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func findCutsceneByName(items []*sequence.Cutscene, name string) *sequence.Cutscene {
	name = strings.TrimSpace(name)
	for _, c := range items {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// parseCutsceneVars accepts repeated k=v flags and comma separated lists.
func parseCutsceneVars(values []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, value := range values {
		for _, pair := range strings.Split(value, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, val, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid variable %q (expected key=value)", pair)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("invalid variable %q (empty key)", pair)
			}
			vars[key] = strings.TrimSpace(val)
		}
	}
	return vars, nil
}

var errInvalidCutsceneName = errors.New("invalid cutscene name")

func normalizeCutsceneName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", errInvalidCutsceneName)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q must not contain path separators", errInvalidCutsceneName, name)
	}
	return name, nil
}

func cutsceneSourceLabel(source, userDir, projDir string) string {
	switch {
	case source == "builtin":
		return "builtin"
	case projDir != "" && strings.HasPrefix(source, projDir):
		return "project"
	case userDir != "" && strings.HasPrefix(source, userDir):
		return "user"
	default:
		return "file"
	}
}
