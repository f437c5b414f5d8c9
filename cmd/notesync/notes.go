package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notesync/pkg/core"
)

func newListCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				return err
			}
			notes, err := firstSnapshot(cmd.Context(), list)
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(notes)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderList(list.Greeting(), notes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newAddCmd(c *cli) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				return err
			}
			editor, err := list.OpenEditor(nil)
			if err != nil {
				return err
			}
			if err := editor.Save(cmd.Context(), title, content); err != nil {
				return userMessage(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), editor.NoteID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Note title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Note content")
	return cmd
}

func newEditCmd(c *cli) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title or content of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				return err
			}
			note, err := svc.Notes().Get(cmd.Context(), args[0])
			if err != nil {
				if core.IsNotFound(err) {
					return fmt.Errorf("note %s not found", args[0])
				}
				return err
			}
			if note.OwnerID != list.Identity().UID {
				return fmt.Errorf("note %s not found", args[0])
			}

			if !cmd.Flags().Changed("title") {
				title = note.Title
			}
			if !cmd.Flags().Changed("content") {
				content = note.Content
			}

			editor, err := list.OpenEditor(&note)
			if err != nil {
				return err
			}
			if err := editor.Save(cmd.Context(), title, content); err != nil {
				return userMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", note.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "New content")
	return cmd
}

func newRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := noteList(svc)
			if err != nil {
				return err
			}
			for _, id := range args {
				err := list.Delete(cmd.Context(), id)
				switch {
				case core.IsNotFound(err):
					c.logger.Warn("note already gone", "id", id)
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
			}
			return nil
		},
	}
}
