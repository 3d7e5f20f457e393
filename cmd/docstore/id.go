package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Inspect entry ids",
}

var idConvertCmd = &cobra.Command{
	Use:   "convert ID",
	Short: "Split a composite id into provider, link and path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ConvertID")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.ConvertID(args[0])
		if err != nil {
			return err
		}
		if c.Provider == "" {
			fmt.Printf("native folder or file %s\n", c.Path)
			return nil
		}
		fmt.Printf("provider: %s\nlink:     %s\npath:     /%s\n", c.Provider, c.LinkID, c.Path)
		return nil
	},
}

var idCodeCmd = &cobra.Command{
	Use:   "code ID",
	Short: "Print the link id of a composite id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetIDCode")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.ConvertID(args[0])
		if err != nil {
			return err
		}
		fmt.Println(c.LinkID)
		return nil
	},
}

var idMakeCmd = &cobra.Command{
	Use:   "make PROVIDER LINK [PATH]",
	Short: "Build the composite id of a path inside a link",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("link id %q: %w", args[1], err)
		}
		p := ""
		if len(args) == 3 {
			p = args[2]
		}

		a, err := newApp(cmd.Context(), "MakeID")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.MakeID(args[0], linkID, p)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var idMapCmd = &cobra.Command{
	Use:   "map ID",
	Short: "Print (and persist) the surrogate key of an id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolve, _ := cmd.Flags().GetBool("resolve")

		a, err := newApp(cmd.Context(), "MapID")
		if err != nil {
			return err
		}
		defer a.Close()

		if resolve {
			id, err := a.ResolveID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if id == "" {
				return fmt.Errorf("no id maps to %s", args[0])
			}
			fmt.Println(id)
			return nil
		}

		mapped, err := a.MapID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(mapped)
		return nil
	},
}

func init() {
	idCmd.AddCommand(idConvertCmd)
	idCmd.AddCommand(idCodeCmd)
	idCmd.AddCommand(idMakeCmd)
	idCmd.AddCommand(idMapCmd)
	idMapCmd.Flags().BoolP("resolve", "r", false, "Treat ID as a surrogate key and print its source id")
}
