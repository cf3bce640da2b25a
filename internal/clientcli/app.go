// Package clientcli implements the interactive qfs shell.
package clientcli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/chzyer/readline"

	"eddisonso.com/go-qfs/internal/config"
	qfs "eddisonso.com/go-qfs/pkg/go-qfs-sdk"
	"eddisonso.com/go-qfs/pkg/qfslog"
)

var commands = []string{"ls", "cat", "get", "put", "write", "rm", "mkdir", "rmdir", "mv", "chmod", "stat", "cd", "pwd", "help", "exit", "quit"}

var errExit = errors.New("exit")

// App runs shell commands against one client.
type App struct {
	client *qfs.Client
	out    io.Writer
}

// NewApp creates an App printing to out.
func NewApp(client *qfs.Client, out io.Writer) *App {
	return &App{client: client, out: out}
}

// Run parses flags, connects and either runs the command given after the
// flags or starts the interactive shell.
func Run(args []string) error {
	flags := flag.NewFlagSet("qfs", flag.ContinueOnError)
	configPath := flags.String("config", "", "Config file (default "+config.Dir()+"/config.yaml)")
	host := flags.String("host", "", "Metaserver host, overrides client.host")
	port := flags.Int("port", 0, "Metaserver port, overrides client.port")
	trace := flags.Bool("trace", false, "Log call entry and exit, like QFS_TRACE")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Client.Host = *host
	}
	if *port != 0 {
		cfg.Client.Port = *port
	}

	tracing := *trace || qfslog.TraceFromEnv()
	logger, err := qfslog.NewLogger(logConfig(cfg.Logging, tracing))
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := []qfs.Option{
		qfs.WithLogger(logger.Logger),
		qfs.WithTrace(tracing),
		qfs.WithCallTimeout(cfg.Client.CallTimeout),
		qfs.WithPageSize(cfg.Client.PageSize),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.CallTimeout)
	client, err := qfs.Connect(ctx, cfg.Client.Host, cfg.Client.Port, opts...)
	cancel()
	if err != nil {
		return err
	}
	defer client.Release()

	app := NewApp(client, os.Stdout)
	if flags.NArg() > 0 {
		if err := app.Exec(flags.Args()); !errors.Is(err, errExit) {
			return err
		}
		return nil
	}

	fmt.Printf("Connected to %s:%d\n", cfg.Client.Host, cfg.Client.Port)
	fmt.Println("Type 'help' for commands, 'exit' to quit")
	fmt.Println()
	return app.repl()
}

// logConfig builds the shell logger settings. Tracing lowers the level so
// call entry and exit records are not filtered out.
func logConfig(cfg config.LoggingConfig, trace bool) qfslog.Config {
	logCfg := qfslog.Config{Source: "qfs", MinLevel: cfg.SlogLevel(), Format: cfg.Format, File: cfg.File}
	if trace {
		logCfg.MinLevel = qfslog.LevelTrace
	}
	return logCfg
}

func (a *App) repl() error {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands {
		items = append(items, readline.PcItem(cmd, readline.PcItemDynamic(a.completeRemotePath)))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          a.prompt(),
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := parseArgs(line)
		if len(args) == 0 {
			continue
		}

		err = a.Exec(args)
		if errors.Is(err, errExit) {
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
		rl.SetPrompt(a.prompt())
	}
	return nil
}

func (a *App) prompt() string {
	wd, err := a.client.Getwd(qfs.DefaultMaxPathLen)
	if err != nil {
		wd = "?"
	}
	return "qfs:" + wd + "> "
}

// completeRemotePath offers the entries of the directory being typed.
func (a *App) completeRemotePath(line string) []string {
	parts := strings.Fields(line)
	prefix := ""
	if len(parts) > 1 && !strings.HasSuffix(line, " ") {
		prefix = parts[len(parts)-1]
	}

	dir := "."
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i+1]
	}

	var completions []string
	for attr, err := range a.client.Entries(dir) {
		if err != nil {
			return completions
		}
		name := attr.Name()
		if dir != "." {
			name = path.Join(dir, name)
		}
		if attr.IsDir() {
			name += "/"
		}
		completions = append(completions, name)
	}
	return completions
}

// Exec runs one command.
func (a *App) Exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ls":
		return a.cmdLs(rest)
	case "cat":
		return a.cmdCat(rest)
	case "get":
		return a.cmdGet(rest)
	case "put":
		return a.cmdPut(rest)
	case "write":
		return a.cmdWrite(rest)
	case "rm":
		return a.cmdRm(rest)
	case "mkdir":
		return a.cmdMkdir(rest)
	case "rmdir":
		return a.cmdRmdir(rest)
	case "mv":
		return a.cmdMv(rest)
	case "chmod":
		return a.cmdChmod(rest)
	case "stat":
		return a.cmdStat(rest)
	case "cd":
		return a.cmdCd(rest)
	case "pwd":
		return a.cmdPwd()
	case "help":
		printHelp(a.out)
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
