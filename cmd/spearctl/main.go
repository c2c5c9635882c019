// Command spearctl inspects launcher binaries and drives the spear components from a shell.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"spear/config"
	"spear/hexdump"
	"spear/patch"
	"spear/pe"
	"spear/process"
	"spear/process_find"
	"spear/resources"
	"spear/search"
)

var (
	rootDirFlag string
	workersFlag uint
)

func paths() (config.Paths, error) {
	if rootDirFlag != "" {
		return config.PathsAt(rootDirFlag), nil
	}
	return config.DefaultPaths()
}

func loadConfig() (config.Paths, *config.Config, error) {
	p, err := paths()
	if err != nil {
		return p, nil, err
	}
	cfg, err := config.Load(p)
	return p, cfg, err
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "spearctl",
		Short:         "Inspect and drive spear components",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&rootDirFlag, "root", "", "spear data directory (default: local app data)")
	rootCmd.PersistentFlags().UintVar(&workersFlag, "workers", 0, "scan workers (default: one per CPU)")

	rootCmd.AddCommand(newScanCmd(), newHarvestCmd(), newFingerprintCmd(), newWaitCmd(), newConfigCmd())
	rootCmd.AddCommand(platformCommands()...)
	return rootCmd
}

func newScanCmd() *cobra.Command {
	var (
		aobFlag     string
		sectionFlag string
		contextFlag int
	)

	cmd := &cobra.Command{
		Use:   "scan <exe>",
		Short: "Scan a section of a PE file for a byte pattern (default: the play handler patterns)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := pe.Open(args[0])
			if err != nil {
				return err
			}
			data, section, err := img.SectionData(sectionFlag)
			if err != nil {
				return err
			}

			patterns := map[string]process.AOB{
				"function":  patch.DefaultPlayPlan.Function,
				"call site": patch.DefaultPlayPlan.CallSite,
			}
			if aobFlag != "" {
				aob, err := process.ParseAOB(aobFlag)
				if err != nil {
					return err
				}
				patterns = map[string]process.AOB{"pattern": aob}
			}

			var options []search.Option
			if workersFlag > 0 {
				options = append(options, search.WithMaxDOP(workersFlag))
			}
			scanner := search.New(options...)
			names := make([]string, 0, len(patterns))
			for name := range patterns {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				aob := patterns[name]
				start := time.Now()
				matches := scanner.All(data, aob)
				fmt.Printf("%s %s: %d matches in %s (%d bytes of %s)\n",
					name, aob.String(), len(matches), time.Since(start), len(data), section.Name)

				for _, off := range matches {
					rva := uint64(section.VirtualAddress) + uint64(off)
					from := max(off-contextFlag, 0)
					to := min(off+aob.Len()+contextFlag, len(data))
					fmt.Printf("  rva 0x%X file 0x%X\n", rva, uint64(section.Offset)+uint64(off))
					fmt.Println(hexdump.DumpAt(data[from:to], rva-uint64(off-from), off-from, aob.Len()))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&aobFlag, "aob", "", "pattern to scan for, e.g. '48 8B ?? 05'")
	cmd.Flags().StringVar(&sectionFlag, "section", ".text", "section to scan")
	cmd.Flags().IntVar(&contextFlag, "context", 16, "bytes of context around each match")
	return cmd
}

func newHarvestCmd() *cobra.Command {
	var cacheFlag string

	cmd := &cobra.Command{
		Use:   "harvest <exe>",
		Short: "Extract the fingerprinted resources of a PE file into the cache directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cacheFlag
			if dir == "" {
				p, err := paths()
				if err != nil {
					return err
				}
				dir = p.CacheDir
			}

			cache := resources.NewCache(dir)
			stats, err := cache.Harvest(args[0])
			if err != nil {
				return err
			}

			if stats.FromCache {
				fmt.Println("all roles already cached in", dir)
			} else {
				fmt.Printf("walked %d directories, %d resources, %d malformed\n",
					stats.Walk.Directories, stats.Walk.Leaves, len(stats.Walk.Malformed))
			}
			for _, f := range resources.DefaultFingerprints {
				data, ok := cache.Get(f.Role)
				fmt.Printf("  %-14s cached=%-5v %d bytes\n", f.Role, ok, len(data))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheFlag, "cache", "", "cache directory (default: <root>/cache)")
	return cmd
}

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file>...",
		Short: "Classify files against the known resource fingerprints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				role := "none"
				if f, ok := resources.Classify(resources.DefaultFingerprints, data); ok {
					role = string(f.Role)
				}
				if resources.IsTargetBackground(data) {
					role = string(resources.RoleBackground)
				}

				dims := ""
				if w, h, ok := resources.PNGDimensions(data); ok {
					dims = fmt.Sprintf(" %dx%d", w, h)
				}
				fmt.Printf("%s: %s%s blake3=%s\n", path, role, dims, resources.Hash(data))
			}
			return nil
		},
	}
}

func newWaitCmd() *cobra.Command {
	var intervalFlag time.Duration

	cmd := &cobra.Command{
		Use:   "wait <process name>",
		Short: "Block until a process with the given name exists",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			pi := process_find.New().WaitForProcess(args[0], intervalFlag)
			fmt.Println(pi.String(), pi.Exe)
		},
	}
	cmd.Flags().DurationVar(&intervalFlag, "interval", 100*time.Millisecond, "poll interval")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the configuration, creating it with defaults when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var b bytes.Buffer
			if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
				return err
			}
			fmt.Printf("# %s\n%s", p.ConfigFile, b.String())
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Overwrite the configuration with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := paths()
			if err != nil {
				return err
			}
			if err := config.Save(p, config.Default()); err != nil {
				return err
			}
			fmt.Println("wrote defaults to", p.ConfigFile)
			return nil
		},
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
