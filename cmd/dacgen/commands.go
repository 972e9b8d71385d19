package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/spaghettifunk/dawn/engine/assets"
	"github.com/spaghettifunk/dawn/engine/assets/dac"
	"github.com/spaghettifunk/dawn/engine/assets/dacgen"
	"github.com/spaghettifunk/dawn/engine/core"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// buildFlags are shared by build and watch. Flags set explicitly win over the
// config file.
type buildFlags struct {
	config      string
	input       string
	output      string
	readMode    string
	compression string
	cacheDir    string
	workers     int
	logLevel    string
}

func (f *buildFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "YAML build configuration")
	fs.StringVarP(&f.input, "input", "i", "", "directory of *.asset.toml descriptors")
	fs.StringVarP(&f.output, "output", "o", "", "container file to write")
	fs.StringVar(&f.readMode, "read-mode", "", "flat or recursive")
	fs.StringVar(&f.compression, "compression", "", "none, fast, default or best")
	fs.StringVar(&f.cacheDir, "cache", "", "build cache directory")
	fs.IntVarP(&f.workers, "workers", "j", 0, "parallel importers")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
}

func (f *buildFlags) resolve(fs *pflag.FlagSet) (*dacgen.Config, error) {
	cfg := dacgen.DefaultConfig()
	loaded := &cfg
	if f.config != "" {
		var err error
		if loaded, err = dacgen.LoadConfig(f.config); err != nil {
			return nil, err
		}
	}
	if fs.Changed("input") {
		loaded.Input = f.input
	}
	if fs.Changed("output") {
		loaded.Output = f.output
	}
	if fs.Changed("read-mode") {
		loaded.ReadMode = dacgen.ReadMode(f.readMode)
	}
	if fs.Changed("compression") {
		loaded.Compression = f.compression
	}
	if fs.Changed("cache") {
		loaded.CacheDir = f.cacheDir
	}
	if fs.Changed("workers") {
		loaded.Workers = f.workers
	}
	if fs.Changed("log-level") {
		loaded.LogLevel = f.logLevel
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(loaded.LogLevel); err != nil {
		return nil, core.NewAssetError(core.ErrConfig, "", err)
	}
	return loaded, nil
}

func runBuild(args []string, out io.Writer) error {
	var flags buildFlags
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	flags.add(fs)
	if ok, err := parse(fs, args, out); !ok {
		return err
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		return err
	}
	registry, err := assets.NewRegistry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := dacgen.BuildConfig(ctx, cfg, registry)
	if err != nil {
		return err
	}
	printResult(out, res)
	return nil
}

func runWatch(args []string, out io.Writer) error {
	var flags buildFlags
	var debounce time.Duration
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flags.add(fs)
	fs.DurationVar(&debounce, "debounce", dacgen.DefaultDebounce, "quiet period before a rebuild")
	if ok, err := parse(fs, args, out); !ok {
		return err
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		return err
	}
	registry, err := assets.NewRegistry()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "watching %s, press ctrl-c to stop\n", cfg.Input)
	err = dacgen.Watch(ctx, cfg, registry, debounce, func(res *dacgen.Result, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s %s\n", failStyle.Render("build failed:"), err)
			return
		}
		printResult(out, res)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printResult(out io.Writer, res *dacgen.Result) {
	fmt.Fprintf(out, "%s %s: %d assets, %s, %d cached, %s\n",
		okStyle.Render("built"), res.Output, len(res.Entries), humanize.IBytes(res.Bytes),
		res.CacheHits, res.Duration.Round(time.Millisecond))
}

func runInspect(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	if ok, err := parse(fs, args, out); !ok {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect takes exactly one container")
	}
	registry, err := assets.NewRegistry()
	if err != nil {
		return err
	}
	c, err := dac.Open(fs.Arg(0), dac.WithRegistry(registry))
	if err != nil {
		return err
	}
	defer c.Close()

	h := c.Header()
	m := c.Manifest()
	fmt.Fprintln(out, titleStyle.Render(c.Path()))
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), value)
		}
	}
	field("format", fmt.Sprint(h.Version))
	field("size", humanize.IBytes(uint64(c.Size())))
	field("entries", fmt.Sprint(h.EntryCount))
	field("build id", m.BuildID)
	field("tool", strings.TrimSpace(m.Tool+" "+m.ToolVersion))
	field("compression", m.Compression)
	field("author", m.Author)
	field("description", m.Description)
	field("version", m.Version)
	field("license", m.License)
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s\n", headStyle.Render(fmt.Sprintf("%-24s %-10s %-5s %10s %10s  %s", "ID", "KIND", "COMP", "STORED", "SIZE", "DEPENDENCIES")))
	for _, e := range c.Entries() {
		deps := make([]string, len(e.Dependencies))
		for i, d := range e.Dependencies {
			deps[i] = string(d)
		}
		fmt.Fprintf(out, "%-24s %-10s %-5s %10s %10s  %s\n",
			e.ID, e.Kind, e.Compression,
			humanize.IBytes(e.PayloadLength), humanize.IBytes(e.UncompressedLength),
			strings.Join(deps, ", "))
	}
	return nil
}

func runVerify(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	if ok, err := parse(fs, args, out); !ok {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("verify needs at least one container")
	}
	registry, err := assets.NewRegistry()
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range fs.Args() {
		if err := verify(path, dac.WithRegistry(registry)); err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %s\n", failStyle.Render("FAIL"), path, err)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("ok"), path)
	}
	if failed > 0 {
		return exitError{code: 2}
	}
	return nil
}

// verify checks every stored checksum, then loads every entry with its
// dependencies.
func verify(path string, opts ...dac.Option) error {
	c, err := dac.Open(path, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Validate(); err != nil {
		return err
	}
	for _, e := range c.Entries() {
		if _, err := c.Load(e.ID); err != nil {
			return err
		}
	}
	core.LogDebug("verified %d entries of %s", len(c.Entries()), path)
	return nil
}
