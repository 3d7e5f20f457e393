package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docstore/internal/app"
	"docstore/internal/files"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage share records",
}

var shareSetCmd = &cobra.Command{
	Use:   "set ENTRY SUBJECT SHARE",
	Short: "Grant, change or revoke (SHARE=none) a subject's share",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryType, _ := cmd.Flags().GetString("type")

		a, err := newApp(cmd.Context(), "SetShare")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.SetShare(cmd.Context(), app.ShareRequest{
			EntryID:   args[0],
			EntryType: entryType,
			Subject:   args[1],
			Share:     args[2],
		})
		if err != nil {
			return fmt.Errorf("setting share: %w", err)
		}
		fmt.Printf("%s %s: %s -> %s\n", entryType, args[0], args[1], args[2])
		return nil
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list ENTRY",
	Short: "List the records that apply to an entry, inherited ones included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryType, _ := cmd.Flags().GetString("type")
		subject, _ := cmd.Flags().GetString("subject")

		a, err := newApp(cmd.Context(), "GetShares")
		if err != nil {
			return err
		}
		defer a.Close()

		if subject != "" {
			share, err := a.EffectiveShare(cmd.Context(), args[0], entryType, subject)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", subject, share)
			return nil
		}

		records, err := a.Shares(cmd.Context(), args[0], entryType)
		if err != nil {
			return err
		}
		printShares(records)
		return nil
	},
}

var sharePureCmd = &cobra.Command{
	Use:   "pure ENTRY",
	Short: "List only the records placed on the entry itself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryType, _ := cmd.Flags().GetString("type")

		a, err := newApp(cmd.Context(), "GetPureShareRecords")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.PureShares(cmd.Context(), args[0], entryType)
		if err != nil {
			return err
		}
		printShares(records)
		return nil
	},
}

var shareRevokeSubjectCmd = &cobra.Command{
	Use:   "revoke-subject SUBJECT",
	Short: "Delete every record naming SUBJECT as subject or owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RemoveSubject")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RevokeSubject(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Revoked %s\n", args[0])
		return nil
	},
}

func printShares(records []*files.ShareRecord) {
	if len(records) == 0 {
		fmt.Println("No share records.")
		return
	}
	for _, r := range records {
		level := fmt.Sprintf("%d", r.Level)
		if r.Level == files.LevelDirect {
			level = "file"
		}
		fmt.Printf("%-5s  %-6s %-24s  %s  %-9s  %s\n",
			level,
			r.EntryType,
			r.EntryID,
			r.Subject,
			r.Share,
			r.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
}

func init() {
	for _, c := range []*cobra.Command{shareSetCmd, shareListCmd, sharePureCmd} {
		c.Flags().StringP("type", "t", "folder", "Entry type: folder or file")
	}
	shareListCmd.Flags().StringP("subject", "s", "", "Resolve the effective share of this subject")

	shareCmd.AddCommand(shareSetCmd)
	shareCmd.AddCommand(shareListCmd)
	shareCmd.AddCommand(sharePureCmd)
	shareCmd.AddCommand(shareRevokeSubjectCmd)
}
