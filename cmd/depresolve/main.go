// Command depresolve resolves a workspace's module dependency graph
// and prints, per module, its direct and transitive dependencies (and,
// for executables, its resolved service providers).
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/amterp/color"
	"github.com/spf13/cobra"

	"github.com/webfx-build/depresolve"
	"github.com/webfx-build/depresolve/internal/logging"
)

var (
	cyanf    = color.New(color.FgCyan).SprintfFunc()
	hicyanf  = color.New(color.FgHiCyan).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
	yellowf  = color.New(color.FgYellow).SprintfFunc()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cacheDir   string
		verbosity  int
	)
	root := &cobra.Command{
		Use:           "depresolve",
		Short:         "Resolve a workspace's module dependency graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "artifact cache directory (overrides config)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	loadCfg := func() (depresolve.Config, *slog.Logger, error) {
		cfg := depresolve.DefaultConfig()
		if configPath != "" {
			var err error
			cfg, err = depresolve.LoadConfig(configPath)
			if err != nil {
				return cfg, nil, err
			}
		}
		if cacheDir != "" {
			cfg.ArtifactCacheDir = cacheDir
		}
		lvl := logging.LevelWarn
		for range verbosity {
			lvl = logging.BumpLevel(lvl, true)
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
		return cfg, logger, nil
	}

	root.AddCommand(newResolveCmd(loadCfg))
	return root
}

func newResolveCmd(loadCfg func() (depresolve.Config, *slog.Logger, error)) *cobra.Command {
	var useSat bool
	cmd := &cobra.Command{
		Use:   "resolve <workspace-dir>",
		Short: "Intern a workspace and print every module's resolved dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadCfg()
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), args[0], cfg, logger, useSat)
		},
	}
	cmd.Flags().BoolVar(&useSat, "sat", false, "also cross-check executable provider selection with the SAT-backed resolver")
	return cmd
}

func runResolve(ctx context.Context, workspaceDir string, cfg depresolve.Config, logger *slog.Logger, useSat bool) error {
	rootDesc, err := assembleWorkspace(workspaceDir)
	if err != nil {
		return err
	}

	reg := depresolve.NewRegistry(cfg, nil, logger)
	reg.SetFetcher(depresolve.NewFilesystemCacheFetcher(cfg.ArtifactCacheDir))

	if _, err := reg.Build(ctx, rootDesc, os.DirFS(workspaceDir)); err != nil {
		return fmt.Errorf("build workspace: %w", err)
	}

	for _, m := range reg.AllModules() {
		printModule(m, useSat)
	}
	for _, diag := range reg.Diagnostics() {
		fmt.Fprintln(os.Stderr, yellowf("warning: %s", diag.Error()))
	}
	return nil
}

func printModule(m *depresolve.Module, useSat bool) {
	fmt.Println(hicyanf("%s", m.Id()), hiblackf("(%s)", m.Kind()))
	for dep := range m.DirectDependencies() {
		fmt.Println("  ", cyanf("direct"), dep.Destination.Id(), hiblackf("[%s]", dep.Kind))
	}
	for dep := range m.TransitiveDependencies() {
		fmt.Println("  ", hiblackf("transitive"), dep.Destination.Id(), hiblackf("[%s]", dep.Kind))
	}
	if !m.IsExecutable() {
		return
	}
	for sp := range m.ExecutableProviders() {
		fmt.Println("  ", cyanf("provides"), sp)
	}
	if useSat {
		sel, err := depresolve.ResolveProvidersSat(context.Background(), m)
		if err != nil {
			fmt.Fprintln(os.Stderr, yellowf("sat cross-check for %s: %v", m.Id(), err))
			return
		}
		for spi, mods := range sel {
			names := make([]string, len(mods))
			for i, mod := range mods {
				names[i] = mod.Id().Name()
			}
			fmt.Println("  ", hiblackf("sat"), spi, strings.Join(names, ","))
		}
	}
}

// assembleWorkspace walks dir for module.xml files and builds a
// [depresolve.ModuleDescriptor] tree: the root directory's own
// module.xml is the workspace root, and every other module.xml found
// beneath it becomes one of the root's direct children. Recognizing an
// aggregate's own nested child layout is the out-of-scope descriptor
// file collaborator's job; this flattened assembly is enough to
// drive the resolver end to end against a real directory tree.
func assembleWorkspace(dir string) (*depresolve.ModuleDescriptor, error) {
	rootPath := filepath.Join(dir, "module.xml")
	root, err := parseDescriptorFile(rootPath, ".")
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Base(p) != "module.xml" || p == rootPath {
			return nil
		}
		childDir := filepath.Dir(p)
		rel, err := filepath.Rel(dir, childDir)
		if err != nil {
			return err
		}
		child, err := parseDescriptorFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		root.Children = append(root.Children, child)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

func parseDescriptorFile(path, sourceDir string) (*depresolve.ModuleDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := depresolve.ParseModuleDescriptor(path, f)
	if err != nil {
		return nil, err
	}
	d.SourceDir = strings.TrimPrefix(sourceDir, "./")
	return d, nil
}
