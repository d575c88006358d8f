package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/revline/internal/config"
	"github.com/hyperengineering/revline/internal/crm"
	"github.com/hyperengineering/revline/internal/store"
	"github.com/hyperengineering/revline/internal/types"
)

var (
	importPlatform  string
	importFile      string
	importAccountID string
	importCreatedBy string
	importDBPath    string
	importJSON      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import CRM deals from a JSON export file",
	Long:  "Normalize a platform's raw deal export into canonical deals and contacts and insert them into a local database, without running the server.",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importPlatform, "platform", "",
		"Source platform: pipedrive, salesforce, hubspot, zoho, folk")
	importCmd.Flags().StringVar(&importFile, "file", "",
		"Path to the raw JSON export (use - for stdin)")
	importCmd.Flags().StringVar(&importAccountID, "account", "",
		"Owning account ID")
	importCmd.Flags().StringVar(&importCreatedBy, "created-by", "",
		"User ID recorded as creator")
	importCmd.Flags().StringVar(&importDBPath, "db", "",
		"Database path (overrides config and REVLINE_DB_PATH)")
	importCmd.Flags().BoolVar(&importJSON, "json", false,
		"Output in JSON format")

	importCmd.MarkFlagRequired("platform")
	importCmd.MarkFlagRequired("file")
	importCmd.MarkFlagRequired("account")
	importCmd.MarkFlagRequired("created-by")
}

func runImport(cmd *cobra.Command, args []string) error {
	raw, err := readImportFile(importFile)
	if err != nil {
		return err
	}

	result, err := crm.TransformDeals(raw, importPlatform, importAccountID, importCreatedBy)
	if err != nil {
		return err
	}

	dbPath := importDBPath
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InsertDealBatch(context.Background(), result); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	summary := types.ImportResult{
		BatchID:          ulid.Make().String(),
		Platform:         importPlatform,
		DealsImported:    len(result.Deals),
		ContactsImported: len(result.DealContacts),
	}

	if importJSON {
		return printJSON(cmd.OutOrStdout(), summary)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Batch:\t%s\n", summary.BatchID)
	fmt.Fprintf(w, "Platform:\t%s\n", summary.Platform)
	fmt.Fprintf(w, "Deals:\t%d\n", summary.DealsImported)
	fmt.Fprintf(w, "Contacts:\t%d\n", summary.ContactsImported)
	return w.Flush()
}

func readImportFile(path string) (json.RawMessage, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}
	return data, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
