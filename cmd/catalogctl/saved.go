package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamhub/internal/savedlist"
)

func newSavedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage the local saved list",
	}

	withRepo := func(fn func(cmd *cobra.Command, repo *savedlist.BadgerRepository, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			repo, err := savedlist.Open(a.savedDir)
			if err != nil {
				return err
			}
			defer repo.Close()
			return fn(cmd, repo, args)
		}
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print saved ids in the order they were saved",
		RunE: withRepo(func(cmd *cobra.Command, repo *savedlist.BadgerRepository, _ []string) error {
			ids, err := repo.Get(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				printJSON(ids)
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}),
	}

	add := &cobra.Command{
		Use:   "add ID...",
		Short: "Save one or more titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(cmd *cobra.Command, repo *savedlist.BadgerRepository, args []string) error {
			for _, id := range args {
				changed, err := savedlist.Add(cmd.Context(), repo, id)
				if err != nil {
					return err
				}
				if changed {
					okLabel.Printf("saved %s\n", id)
				} else {
					fmt.Printf("%s already saved\n", id)
				}
			}
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:   "remove ID...",
		Short: "Forget one or more titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: withRepo(func(cmd *cobra.Command, repo *savedlist.BadgerRepository, args []string) error {
			for _, id := range args {
				removed, err := savedlist.Remove(cmd.Context(), repo, id)
				if err != nil {
					return err
				}
				if removed {
					okLabel.Printf("removed %s\n", id)
				} else {
					fmt.Printf("%s was not saved\n", id)
				}
			}
			return nil
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
