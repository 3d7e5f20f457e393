package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docstore/internal/files"
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderCreateCmd = &cobra.Command{
	Use:   "create TITLE",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp(cmd.Context(), "CreateFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.CreateFolder(cmd.Context(), parent, args[0])
		if err != nil {
			return fmt.Errorf("creating folder: %w", err)
		}
		fmt.Printf("Created folder %s: %s\n", f.ID, f.Title)
		return nil
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list ID",
	Short: "List the contents of a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		folders, list, err := a.ListFolder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(folders)+len(list) == 0 {
			fmt.Println("Folder is empty.")
			return nil
		}
		for _, f := range folders {
			fmt.Printf("d  %-24s  %s\n", f.ID, f.Title)
		}
		for _, f := range list {
			fmt.Printf("-  %-24s  %s  v%d  %d\n", f.ID, f.Title, f.Version, f.ContentLength)
		}
		return nil
	},
}

var folderMoveCmd = &cobra.Command{
	Use:   "move ID TO",
	Short: "Move a folder under another folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "MoveFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.MoveFolder(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("moving folder: %w", err)
		}
		fmt.Printf("Moved folder %s\n", id)
		return nil
	},
}

var folderCopyCmd = &cobra.Command{
	Use:   "copy ID TO",
	Short: "Copy a folder with its contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CopyFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.CopyFolder(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("copying folder: %w", err)
		}
		fmt.Printf("Copied to folder %s: %s\n", f.ID, f.Title)
		return nil
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a folder with everything below it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DeleteFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteFolder(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting folder: %w", err)
		}
		fmt.Printf("Deleted folder %s\n", args[0])
		return nil
	},
}

var folderPathCmd = &cobra.Command{
	Use:   "path ID",
	Short: "Show the folders from the root down to ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "FolderPath")
		if err != nil {
			return err
		}
		defer a.Close()

		chain, err := a.FolderPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(formatPath(chain))
		return nil
	},
}

func formatPath(chain []*files.Folder) string {
	titles := make([]string, len(chain))
	for i, f := range chain {
		titles[i] = f.Title
	}
	return "/" + strings.Join(titles, "/")
}

func init() {
	folderCmd.AddCommand(folderCreateCmd)
	folderCreateCmd.Flags().StringP("parent", "p", "", "Parent folder id (default: new root folder)")
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderMoveCmd)
	folderCmd.AddCommand(folderCopyCmd)
	folderCmd.AddCommand(folderDeleteCmd)
	folderCmd.AddCommand(folderPathCmd)
}
