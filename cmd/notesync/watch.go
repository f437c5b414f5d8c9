package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	nslifecycle "github.com/aretw0/notesync/pkg/adapters/lifecycle"
	"github.com/aretw0/notesync/pkg/core"
)

func newWatchCmd(c *cli) *cobra.Command {
	var asJSON, events bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream your note list as it changes, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			snapshots := make(chan []core.Note, 16)
			unsubscribe := list.OnUpdate(func(notes []core.Note) {
				select {
				case snapshots <- notes:
				default:
					c.logger.Warn("output is lagging, skipping a snapshot")
				}
			})
			defer unsubscribe()

			var sources []lifecycle.Source
			sources = append(sources, nslifecycle.NewSessionSource(svc.Sessions()))
			if events {
				feed, err := svc.Watch(ctx)
				switch {
				case errors.Is(err, core.ErrWatchUnsupported):
					c.logger.Warn("store does not report raw changes")
				case err != nil:
					return err
				default:
					sources = append(sources, nslifecycle.NewSource(feed))
				}
			}
			merged := make(chan lifecycle.Event)
			for _, src := range sources {
				if err := src.Start(ctx); err != nil {
					return err
				}
				forward(ctx, src, merged)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case notes := <-snapshots:
					if asJSON {
						if err := json.NewEncoder(out).Encode(notes); err != nil {
							return err
						}
						continue
					}
					fmt.Fprint(out, renderList(list.Greeting(), notes))
				case e := <-merged:
					if se, ok := e.(nslifecycle.SessionEvent); ok && !se.Session.Authenticated() {
						fmt.Fprintln(out, "Signed out elsewhere, stopping")
						return nil
					}
					if events {
						c.logger.Info("event", "event", e.String())
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print each snapshot as a JSON line")
	cmd.Flags().BoolVar(&events, "events", false, "Log raw change events")
	return cmd
}

func forward(ctx context.Context, src lifecycle.Source, out chan<- lifecycle.Event) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for e := range src.Events() {
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
}
