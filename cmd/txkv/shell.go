package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/myuser/txkv/internal/command"
	"github.com/myuser/txkv/internal/config"
	"github.com/myuser/txkv/internal/logutil"
	"github.com/myuser/txkv/internal/storage"
	"github.com/myuser/txkv/internal/txn"
)

const banner = `███████████████
█ S █ T █ O █ R █ E █
███████████████
█ R █ E █ A █ D █ Y █
███████████████`

func newShellCommand() *cobra.Command {
	var (
		confirm bool
		load    string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over a private in-process store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runShell(cfg, load, confirm)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "ask before DELETE, COMMIT and ROLLBACK")
	cmd.Flags().StringVar(&load, "load", "", "start from a JSON image written by DUMP or /debug/dump")
	return cmd
}

func runShell(cfg *config.Config, load string, confirm bool) error {
	logger, err := logutil.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	target, err := cfg.Txn.CommitTarget()
	if err != nil {
		return err
	}
	store := storage.NewMemoryStoreDegree(cfg.Store.BTreeDegree)
	if load != "" {
		data, err := os.ReadFile(load)
		if err != nil {
			return errors.Wrap(err, "load image")
		}
		if err := store.Restore(data); err != nil {
			return errors.Wrapf(err, "restore %s", load)
		}
	}
	mgr := txn.NewManager(store,
		txn.WithCommitTarget(target),
		txn.WithLogger(logger.Named("txn")),
	)
	sess := mgr.NewSession()
	defer sess.Close()

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".txkv_history")
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[32m>\033[0m ",
		HistoryFile:       historyFile,
		AutoComplete:      completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	out := l.Stdout()
	fmt.Fprintln(out, banner)
	fmt.Fprintln(out, "[ Type a command, or exit to quit ]")

	for {
		line, err := l.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		cmd, err := command.Parse(line)
		if err != nil {
			fmt.Fprintln(out, command.Render(command.Result{}, err))
			continue
		}
		if confirm && cmd.Op.Destructive() && !ask(l, cmd) {
			continue
		}

		if text := command.Render(command.Execute(sess, cmd)); text != "" {
			fmt.Fprintln(out, text)
		}
	}
}

// ask prompts for a yes/no answer before running cmd.
func ask(l *readline.Instance, cmd command.Command) bool {
	prompt := l.Config.Prompt
	defer l.SetPrompt(prompt)

	l.SetPrompt(fmt.Sprintf("Run %s? [y/N] ", cmd))
	answer, err := l.Readline()
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(command.Ops())+1)
	for _, op := range command.Ops() {
		items = append(items, readline.PcItem(string(op)))
	}
	items = append(items, readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}
