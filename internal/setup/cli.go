package setup

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// CLI implements the "setup" subcommand of the lite server.
type CLI struct {
	out            io.Writer
	defaultDataDir string
}

// NewCLI creates a CLI that prints to out.
func NewCLI(out io.Writer, defaultDataDir string) *CLI {
	return &CLI{out: out, defaultDataDir: defaultDataDir}
}

// Run executes the setup command named by args[0].
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "register":
		return c.register(args[1:])
	case "unregister":
		return c.unregister(args[1:])
	case "status":
		return c.status(args[1:])
	case "help", "--help", "-h":
		c.showHelp()
		return nil
	default:
		c.showHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (c *CLI) showHelp() {
	fmt.Fprint(c.out, `DermaScan MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  register    Add DermaScan to the desktop MCP client config
  unregister  Remove DermaScan from the client config
  status      Show the current registration

Options:
  --config    client config file (platform default when omitted)
  --binary    server binary to launch (current executable by default)
  --data-dir  data directory passed as DERMASCAN_DATA_DIR
  --model     remote model endpoint passed as DERMASCAN_MODEL_ENDPOINT
`)
}

func (c *CLI) flags(name string) (*pflag.FlagSet, *Options) {
	opts := &Options{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.out)
	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "client config file")
	fs.StringVarP(&opts.BinaryPath, "binary", "b", "", "server binary")
	fs.StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory")
	fs.StringVar(&opts.ModelEndpoint, "model", "", "remote model endpoint")
	return fs, opts
}

func (c *CLI) register(args []string) error {
	fs, opts := c.flags("register")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.BinaryPath == "" {
		if exe, err := os.Executable(); err == nil {
			opts.BinaryPath = exe
		}
	}

	path, err := Register(*opts)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	fmt.Fprintf(c.out, "Registered %q in %s\n", ServerName, path)
	fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	fmt.Fprintln(c.out, "Restart the MCP client to load the new configuration.")
	return nil
}

func (c *CLI) unregister(args []string) error {
	fs, opts := c.flags("unregister")
	if err := fs.Parse(args); err != nil {
		return err
	}

	removed, err := Unregister(opts.ConfigPath)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintf(c.out, "Removed %q from the client config\n", ServerName)
	} else {
		fmt.Fprintf(c.out, "%q was not registered\n", ServerName)
	}
	return nil
}

func (c *CLI) status(args []string) error {
	fs, opts := c.flags("status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := Inspect(opts.ConfigPath, c.defaultDataDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Client config: %s\n", st.ConfigPath)
	fmt.Fprintf(c.out, "Registered:    %s\n", mark(st.Registered))
	if st.Registered {
		fmt.Fprintf(c.out, "Binary:        %s (%s)\n", st.ServerPath, found(st.BinaryFound))
	}
	fmt.Fprintf(c.out, "Data dir:      %s (%s)\n", st.DataDir, found(st.DataDirFound))
	fmt.Fprintf(c.out, "History DB:    %s\n", found(st.HistoryDB))
	for _, issue := range st.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}
