package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/rollout/internal/adapters/sqlite"
	"github.com/example/rollout/internal/ports/secondary"
	"github.com/example/rollout/internal/wire"
)

// transactionFile is the import document:
//
//	transactions:
//	  - city: Juara
//	    type: credit
//	    description: Top-up via app
//	    amount: "120.00"
//	    timestamp: 2026-01-10T14:30:00Z
type transactionFile struct {
	Transactions []transactionEntry `yaml:"transactions"`
}

type transactionEntry struct {
	ID          string          `yaml:"id"`
	City        string          `yaml:"city"`
	Type        string          `yaml:"type"`
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	Timestamp   time.Time       `yaml:"timestamp"`
}

// parseTransactions decodes and checks an import document.
func parseTransactions(data []byte) ([]sqlite.ImportRow, error) {
	var doc transactionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}

	rows := make([]sqlite.ImportRow, 0, len(doc.Transactions))
	for i, e := range doc.Transactions {
		typ := secondary.TransactionType(strings.ToUpper(e.Type))
		switch {
		case e.City == "":
			return nil, fmt.Errorf("transaction %d: city is required", i+1)
		case typ != secondary.TransactionCredit && typ != secondary.TransactionDebit:
			return nil, fmt.Errorf("transaction %d: type must be CREDIT or DEBIT, got %q", i+1, e.Type)
		case e.Timestamp.IsZero():
			return nil, fmt.Errorf("transaction %d: timestamp is required", i+1)
		}
		rows = append(rows, sqlite.ImportRow{
			ID:          e.ID,
			City:        e.City,
			Type:        typ,
			Description: e.Description,
			Amount:      e.Amount,
			Timestamp:   e.Timestamp,
		})
	}
	return rows, nil
}

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage the local transaction feed",
}

var txImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Import transactions from a YAML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		rows, err := parseTransactions(data)
		if err != nil {
			return err
		}

		n, err := wire.TransactionFeed().Import(NewContext(), rows)
		if err != nil {
			return fmt.Errorf("failed to import transactions: %w", err)
		}
		fmt.Printf("✓ Imported %d transaction(s)\n", n)
		return nil
	},
}

func init() {
	txCmd.AddCommand(txImportCmd)
}

// TxCmd returns the tx command
func TxCmd() *cobra.Command {
	return txCmd
}
