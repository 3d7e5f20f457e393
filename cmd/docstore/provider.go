package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"docstore/internal/files"
	"docstore/internal/thirdparty"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage linked external stores",
}

var providerAddCmd = &cobra.Command{
	Use:   "add KEY TITLE",
	Short: "Link an external store (box, dropbox, googledrive, onedrive, sharepoint, webdav, s3)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		user, _ := cmd.Flags().GetString("user")
		token, _ := cmd.Flags().GetString("token")
		common, _ := cmd.Flags().GetBool("common")
		askPassword, _ := cmd.Flags().GetBool("password")

		link := thirdparty.NewLink{
			Provider:       args[0],
			CustomerTitle:  args[1],
			RootFolderType: files.FolderTypeUser,
			URL:            url,
			UserName:       user,
			Token:          token,
		}
		if common {
			link.RootFolderType = files.FolderTypeCommon
		}
		if askPassword {
			pass, err := readSecret("Password")
			if err != nil {
				return err
			}
			link.Password = pass
		}

		a, err := newApp(cmd.Context(), "SaveProviderInfo")
		if err != nil {
			return err
		}
		defer a.Close()

		rootID, err := a.AddProvider(cmd.Context(), link)
		if err != nil {
			return fmt.Errorf("linking provider: %w", err)
		}
		fmt.Printf("Linked %s as %s\n", args[1], rootID)
		return nil
	},
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetProvidersInfo")
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.Providers(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No linked stores.")
			return nil
		}
		for _, p := range infos {
			root := "user"
			if p.RootFolderType == files.FolderTypeCommon {
				root = "common"
			}
			fmt.Printf("%-16s  %-12s  %-6s  %s  %s\n",
				p.RootID(), p.Provider.Title, root, p.CreateOn.Format("2006-01-02"), p.CustomerTitle)
		}
		return nil
	},
}

var providerRenameCmd = &cobra.Command{
	Use:   "rename LINK TITLE",
	Short: "Rename a linked store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("link id %q: %w", args[0], err)
		}

		a, err := newApp(cmd.Context(), "UpdateProviderInfo")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.RenameProvider(cmd.Context(), linkID, args[1])
	},
}

var providerRemoveCmd = &cobra.Command{
	Use:   "remove LINK",
	Short: "Unlink a store and drop its share records, tags and id mappings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("link id %q: %w", args[0], err)
		}

		a, err := newApp(cmd.Context(), "RemoveProviderInfo")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RemoveProvider(cmd.Context(), linkID); err != nil {
			return err
		}
		fmt.Printf("Unlinked %d\n", linkID)
		return nil
	},
}

var providerProbeCmd = &cobra.Command{
	Use:   "probe ROOT",
	Short: "Connect to a linked store and count the items in its root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ProbeProvider")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.ProbeProvider(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d item(s)\n", args[0], n)
		return nil
	},
}

func init() {
	providerCmd.AddCommand(providerAddCmd)
	providerAddCmd.Flags().String("url", "", "Service URL (s3://bucket/prefix?region=... for s3)")
	providerAddCmd.Flags().String("user", "", "User name or access key")
	providerAddCmd.Flags().String("token", "", "OAuth token")
	providerAddCmd.Flags().Bool("common", false, "Mount in the common folder instead of the user's")
	providerAddCmd.Flags().Bool("password", false, "Prompt for a password or secret key")
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerRenameCmd)
	providerCmd.AddCommand(providerRemoveCmd)
	providerCmd.AddCommand(providerProbeCmd)
}
