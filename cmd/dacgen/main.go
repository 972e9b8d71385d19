// dacgen packs a directory of asset sources into a container and inspects
// existing containers.
//
//	dacgen build   [--config dacgen.yaml] [flags]
//	dacgen watch   [--config dacgen.yaml] [flags]
//	dacgen inspect <container.dac>
//	dacgen verify  <container.dac>...
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(args []string, out io.Writer) error
}

var commands = []command{
	{"build", "import sources and write a container", runBuild},
	{"watch", "rebuild the container whenever a source changes", runWatch},
	{"inspect", "print the header, manifest and entries of a container", runInspect},
	{"verify", "check every checksum and decode every entry", runVerify},
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], out)
		}
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, titleStyle.Render("dacgen")+" builds and inspects Dawn asset containers")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'dacgen <command> --help' for the flags of a command.")
}

// parse parses flags and handles --help.
func parse(fs *pflag.FlagSet, args []string, out io.Writer) (bool, error) {
	fs.SetOutput(out)
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	if help, _ := fs.GetBool("help"); help {
		fmt.Fprintf(out, "Usage of dacgen %s:\n", fs.Name())
		fs.PrintDefaults()
		return false, nil
	}
	return true, nil
}
