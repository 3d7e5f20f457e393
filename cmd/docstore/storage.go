package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage where tenant content is stored",
}

var storageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the tenant's storage selection and usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "StorageInfo")
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.StorageInfo(cmd.Context())
		if err != nil {
			return err
		}
		if info.Consumer.Name() == "" {
			fmt.Println("Consumer: default handlers")
		} else {
			fmt.Printf("Consumer: %s (%s, configured: %v)\n",
				info.Consumer.Name(), info.Consumer.HandlerType(), info.Consumer.IsSet())
			for _, k := range info.Settings.PropKeys() {
				fmt.Printf("  %s\n", k)
			}
		}
		fmt.Printf("Modules:  %s\n", strings.Join(info.Modules, ", "))
		fmt.Printf("Used:     %d bytes\n", info.Used)
		if info.Quota != nil {
			fmt.Printf("Quota:    file %d, total %d\n", info.Quota.MaxFileSize, info.Quota.MaxTotalSize)
		}
		return nil
	},
}

var storageSetCmd = &cobra.Command{
	Use:   "set CONSUMER [KEY=VALUE ...]",
	Short: "Switch the tenant to a consumer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props := make(map[string]string, len(args)-1)
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("property %q: want KEY=VALUE", kv)
			}
			props[k] = v
		}

		a, err := newApp(cmd.Context(), "SaveStorageSettings")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetStorage(cmd.Context(), args[0], props); err != nil {
			return fmt.Errorf("saving storage settings: %w", err)
		}
		fmt.Printf("Storage switched to %s\n", args[0])
		return nil
	},
}

var storageClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Return the tenant to the default handlers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ClearStorageSettings")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearStorage(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Storage reset to default handlers")
		return nil
	},
}

var storageQuotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Set the tenant's quota (0 means unlimited)",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxFile, _ := cmd.Flags().GetInt64("max-file")
		maxTotal, _ := cmd.Flags().GetInt64("max-total")

		a, err := newApp(cmd.Context(), "SetQuota")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.SetQuota(cmd.Context(), maxFile, maxTotal)
	},
}

var storagePutCmd = &cobra.Command{
	Use:   "put MODULE PATH FILE",
	Short: "Upload a local file into a module",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, _ := cmd.Flags().GetString("domain")

		f, err := os.Open(args[2])
		if err != nil {
			return err
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "PutContent")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PutContent(cmd.Context(), args[0], domain, args[1], f, st.Size())
		if err != nil {
			return fmt.Errorf("uploading: %w", err)
		}
		fmt.Printf("Stored %d bytes at %s/%s\n", n, args[0], args[1])
		return nil
	},
}

func init() {
	storageCmd.AddCommand(storageShowCmd)
	storageCmd.AddCommand(storageSetCmd)
	storageCmd.AddCommand(storageClearCmd)
	storageCmd.AddCommand(storageQuotaCmd)
	storageQuotaCmd.Flags().Int64("max-file", 0, "Largest single file in bytes")
	storageQuotaCmd.Flags().Int64("max-total", 0, "Total bytes across counted modules")
	storageCmd.AddCommand(storagePutCmd)
	storagePutCmd.Flags().StringP("domain", "d", "", "Domain within the module")
}
