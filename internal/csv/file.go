package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"moff.io/moff-connector/internal/database"
	"moff.io/moff-connector/pkg/errors"
)

var activationHeader = []string{"id", "connector", "operation", "desired_chain", "chain_id", "accounts", "error", "caller", "created_at"}

// WriteActivations writes records as csv with a header line.
func WriteActivations(w io.Writer, records []*database.ActivationRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, activationHeader)
	for _, r := range records {
		rows = append(rows, activationRow(r))
	}
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write activations csv")
	}
	return nil
}

func activationRow(r *database.ActivationRecord) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Connector,
		string(r.Operation),
		int64OrEmpty(r.DesiredChain),
		int64OrEmpty(r.ChainID),
		joinAccounts(r.Accounts),
		stringOrEmpty(r.Error),
		stringOrEmpty(r.Caller),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func joinAccounts(accounts database.JSONBArray) string {
	parts := make([]string, 0, len(accounts))
	for _, a := range accounts {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, ";")
}

func int64OrEmpty(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
