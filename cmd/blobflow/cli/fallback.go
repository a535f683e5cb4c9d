package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/walrusagents/blobflow/sdk/action"
	"github.com/walrusagents/blobflow/sdk/fallback"

	"github.com/spf13/cobra"
)

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Inspect metadata saved while the storage network was unreachable",
}

var fallbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fallback records, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFallback()
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No fallback records")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tIDENTIFIER\tBYTES\tCREATED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Key, r.Identifier, len(r.Payload), r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var fallbackGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one fallback record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFallback()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	},
}

var fallbackDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a fallback record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openFallback()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	fallbackCmd.AddCommand(fallbackListCmd, fallbackGetCmd, fallbackDeleteCmd)
}

func openFallback() (fallback.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return action.NewFallbackStore(cfg)
}

func printRecord(r fallback.Record) {
	fmt.Printf("Key:        %s\n", r.Key)
	fmt.Printf("Identifier: %s\n", r.Identifier)
	fmt.Printf("Created:    %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if len(r.Tags) > 0 {
		keys := make([]string, 0, len(r.Tags))
		for k := range r.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+r.Tags[k])
		}
		fmt.Printf("Tags:       %s\n", strings.Join(pairs, ", "))
	}
	fmt.Printf("Payload:    %s\n", renderPayload(r.Payload))
}

// renderPayload shows text as is and anything else as base64.
func renderPayload(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return "base64:" + base64.StdEncoding.EncodeToString(b)
}
