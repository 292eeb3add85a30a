package export

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ohleck/gr-analyzer/sdr"
)

func TestSQLiteWrite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	records := make(chan sdr.StepRecord, 3)
	for i := 0; i < 3; i++ {
		records <- sdr.StepRecord{
			Identifier:   "run-1",
			Source:       "sim",
			Segment:      0,
			StepIndex:    int64(i),
			FreqCenterHz: 100e6 + float64(i)*7.5e6,
			SettleCount:  3,
			CopyCount:    8,
			Start:        time.UnixMilli(1700000000000 + int64(i)),
			End:          time.UnixMilli(1700000000100 + int64(i)),
		}
	}
	close(records)

	s := &SQLite{DB: db}
	if err := s.Write(context.Background(), records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sweep_journal`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 3 {
		t.Fatalf("stored %d records, want 3", count)
	}

	var freq float64
	var copied int64
	if err := db.QueryRow(`SELECT FreqCenterHz, CopyCount FROM sweep_journal WHERE StepIndex = 2`).Scan(&freq, &copied); err != nil {
		t.Fatalf("row query: %v", err)
	}
	if freq != 115e6 || copied != 8 {
		t.Errorf("step 2 = %f Hz / %d copied, want 115e6 / 8", freq, copied)
	}
}
