package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redmonkez12/locklog/internal/accesslog"
)

var reportHeader = []string{"card_id", "name", "idcard", "profield", "score", "score_type", "note", "created_at"}

func writeReportCSV(w io.Writer, rows []accesslog.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.CardID,
			r.Name,
			r.IDCard,
			r.Profield,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			r.ScoreType,
			r.Note,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
