// Package report builds and writes the snapshot result document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-snapshot/internal/chain"
	"github.com/contactkeval/option-snapshot/internal/metrics"
)

// FetchedAtLayout formats fetched_at.
const FetchedAtLayout = time.RFC3339Nano

// Document is the single JSON object a snapshot emits. Rows is never nil so
// that it always encodes as an array.
type Document struct {
	Spot         *float64              `json:"spot"`
	FetchedAt    string                `json:"fetched_at"`
	Rows         []chain.Row           `json:"rows"`
	ATMIV        *metrics.ATMIV        `json:"atm_iv"`
	PutCallRatio *metrics.PutCallRatio `json:"put_call_volume_ratio"`
	ImpliedMove  *metrics.ImpliedMove  `json:"implied_move"`
}

// New assembles a document. spot is rounded to cents on output only.
func New(spot *float64, rows []chain.Row, m metrics.Result, fetchedAt time.Time) *Document {
	doc := Empty(fetchedAt)
	if spot != nil {
		if v := chain.Round(*spot, 2); chain.Finite(v) {
			doc.Spot = &v
		}
	}
	if rows != nil {
		doc.Rows = rows
	}
	doc.ATMIV = m.ATMIV
	doc.PutCallRatio = m.PutCallRatio
	doc.ImpliedMove = m.ImpliedMove
	return doc
}

// Empty is the degenerate document: no spot, no rows, no metrics.
func Empty(fetchedAt time.Time) *Document {
	return &Document{
		FetchedAt: fetchedAt.UTC().Format(FetchedAtLayout),
		Rows:      []chain.Row{},
	}
}

// WriteJSON encodes doc as one JSON document followed by a newline.
func WriteJSON(w io.Writer, doc *Document, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// WriteCSV writes rows with a header line to path, replacing any existing
// file.
func WriteCSV(path string, rows []chain.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if rows == nil {
		rows = []chain.Row{}
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return f.Close()
}
