package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
)

// resolveTimeout bounds how long a command waits for the session to resolve
// or for the first note snapshot.
const resolveTimeout = 5 * time.Second

// cli holds the global flags and the state shared by every command.
type cli struct {
	verbose    bool
	vault      string
	adapter    string
	configPath string

	logger *slog.Logger
	opts   []notesync.Option
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "notesync",
		Short: "A personal note-taking client with live synchronized lists",
		Long: `notesync keeps your notes in a vault of Markdown files and shows each
signed-in user their own notes, newest first, updated live as the vault changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&c.vault, "vault", "", "Vault directory (default: nearest vault or the working directory)")
	flags.StringVar(&c.adapter, "adapter", "", "Storage adapter: fs or memory")
	flags.StringVar(&c.configPath, "config", "", "Config file (default: <vault>/"+notesync.ConfigFileName+")")

	root.AddCommand(
		newRegisterCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newListCmd(c),
		newAddCmd(c),
		newEditCmd(c),
		newRmCmd(c),
		newWatchCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup resolves the vault, reads the config file and configures logging.
// Flags win over the config file.
func (c *cli) setup(cmd *cobra.Command) error {
	if c.vault == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("error getting working directory: %w", err)
		}
		c.vault = wd
		if root, err := notesync.FindVaultRoot(wd); err == nil {
			c.vault = root
		}
	}

	required := c.configPath != ""
	if c.configPath == "" {
		c.configPath = filepath.Join(c.vault, notesync.ConfigFileName)
	}
	cfg, err := notesync.LoadConfig(c.configPath, required)
	if err != nil {
		return err
	}
	if cfg.Vault != "" && !cmd.Flags().Changed("vault") {
		c.vault = cfg.Vault
	}

	level := slog.LevelInfo
	if strings.EqualFold(cfg.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)

	c.opts = append(cfg.Options(), notesync.WithLogger(c.logger))
	if c.adapter != "" {
		c.opts = append(c.opts, notesync.WithAdapter(c.adapter))
	}
	return nil
}

// open starts a service and waits for the session to resolve.
func (c *cli) open(ctx context.Context, extra ...notesync.Option) (*core.Service, error) {
	opts := append(append([]notesync.Option{}, c.opts...), extra...)
	svc, err := notesync.New(c.vault, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing notesync: %w", err)
	}
	svc.Start()

	waitCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	if _, err := svc.Sessions().WaitResolved(waitCtx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("session did not resolve: %w", err)
	}
	return svc, nil
}

// noteList returns the list screen of the signed-in user.
func noteList(svc *core.Service) (*core.NoteListScreen, error) {
	list, err := svc.Navigator().NoteList()
	if errors.Is(err, core.ErrNotAuthenticated) {
		return nil, errors.New("not signed in: run `notesync login` first")
	}
	return list, err
}

// firstSnapshot waits for the list's first delivery.
func firstSnapshot(ctx context.Context, list *core.NoteListScreen) ([]core.Note, error) {
	ch := make(chan []core.Note, 1)
	unsubscribe := list.OnUpdate(func(notes []core.Note) {
		select {
		case ch <- notes:
		default:
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	select {
	case notes := <-ch:
		return notes, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for notes: %w", ctx.Err())
	}
}

// userMessage turns auth failures into the text shown to the user.
func userMessage(err error) error {
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		return errors.New(authErr.Message())
	}
	return err
}
