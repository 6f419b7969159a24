package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/contactkeval/option-snapshot/internal/chain"
	"github.com/contactkeval/option-snapshot/internal/metrics"
	"github.com/contactkeval/option-snapshot/internal/testutil"
)

var fetchedAt = time.Date(2025, time.January, 14, 15, 30, 0, 0, time.UTC)

func testRows() []chain.Row {
	expiry := time.Date(2025, time.January, 17, 0, 0, 0, 0, time.UTC)
	return []chain.Row{
		{ExpiryUTC: expiry.Format(chain.ExpiryLayout), TTMDays: 3, Strike: 100, Type: chain.Call, IV: 0.2, OI: 500, Volume: 120, Bid: 2, Ask: 2.2, LastPrice: 2.1, Expiry: expiry},
		{ExpiryUTC: expiry.Format(chain.ExpiryLayout), TTMDays: 3, Strike: 100, Type: chain.Put, IV: 0.22, OI: 400, Volume: 90, Bid: 1.8, Ask: 2, LastPrice: 1.9, Expiry: expiry},
	}
}

func TestEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Empty(fetchedAt), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"spot":null,"fetched_at":"2025-01-14T15:30:00Z","rows":[],"atm_iv":null,"put_call_volume_ratio":null,"implied_move":null}` + "\n"
	if buf.String() != expected {
		t.Fatalf("expected\n%s\ngot\n%s", expected, buf.String())
	}
}

func TestNewRoundsSpot(t *testing.T) {
	spot := 101.2549
	doc := New(&spot, nil, metrics.Result{}, fetchedAt)

	if doc.Spot == nil || *doc.Spot != 101.25 {
		t.Fatalf("expected spot 101.25, got %v", doc.Spot)
	}
	if spot != 101.2549 {
		t.Fatalf("input spot must not be modified, got %v", spot)
	}
	if doc.Rows == nil {
		t.Fatalf("rows must never be nil")
	}
}

func TestWriteJSONRowFields(t *testing.T) {
	spot := 100.0
	rows := testRows()
	doc := New(&spot, rows, metrics.Compute(&spot, rows), fetchedAt)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"spot", "fetched_at", "rows", "atm_iv", "put_call_volume_ratio", "implied_move"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q", key)
		}
	}

	first := decoded["rows"].([]any)[0].(map[string]any)
	for _, key := range []string{"expiryUTC", "ttmDays", "strike", "type", "iv", "oi", "volume", "bid", "ask", "lastPrice"} {
		if _, ok := first[key]; !ok {
			t.Fatalf("row missing key %q", key)
		}
	}
	if len(first) != 10 {
		t.Fatalf("row must carry exactly 10 keys, got %d", len(first))
	}
	if first["expiryUTC"] != "2025-01-17T00:00:00Z" {
		t.Fatalf("unexpected expiryUTC %v", first["expiryUTC"])
	}
	if !strings.Contains(buf.String(), "\n  \"rows\": [") {
		t.Fatalf("pretty output expected, got\n%s", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	if err := WriteCSV(path, testRows()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), b)
	}
	if lines[0] != "expiryUTC,ttmDays,strike,type,iv,oi,volume,bid,ask,lastPrice" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2025-01-17T00:00:00Z,3,100,put,0.22,400,90,") {
		t.Fatalf("unexpected put row %q", lines[2])
	}
}

func TestDocumentGolden(t *testing.T) {
	spot := 100.0
	rows := testRows()
	doc := New(&spot, rows, metrics.Compute(&spot, rows), fetchedAt)

	testutil.CompareWithGolden(t, "document", doc)
}

func TestNewDropsSpotTooLargeToRound(t *testing.T) {
	spot := 1e307
	doc := New(&spot, nil, metrics.Result{}, fetchedAt)
	if doc.Spot != nil {
		t.Fatalf("expected null spot, got %v", *doc.Spot)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc, false); err != nil {
		t.Fatalf("document must stay encodable: %v", err)
	}
}
