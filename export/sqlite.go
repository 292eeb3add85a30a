package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/ohleck/gr-analyzer/sdr"
)

const (
	sqliteRecordCountInfo = 1000

	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS sweep_journal (
		"ID"            INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"Identifier"    TEXT NOT NULL,
		"Source"        TEXT NOT NULL,
		"Segment"       INTEGER,
		"StepIndex"     INTEGER,
		"FreqCenterHz"  REAL,
		"LOOffsetHz"    REAL,
		"SettleCount"   INTEGER,
		"CopyCount"     INTEGER,
		"Start"         INTEGER,
		"End"           INTEGER
	);`
	sqliteInsertRecordTmpl = `INSERT INTO sweep_journal (
		Identifier,
		Source,
		Segment,
		StepIndex,
		FreqCenterHz,
		LOOffsetHz,
		SettleCount,
		CopyCount,
		"Start",
		"End"
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

type SQLite struct {
	DB *sql.DB
}

func (s *SQLite) Write(ctx context.Context, records <-chan sdr.StepRecord) error {
	if err := sqliteCreateTableIfNotExists(s.DB); err != nil {
		return fmt.Errorf("unable to create table: %s", err)
	}

	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for r := range records {
		counts["total"] += 1
		if err := sqliteInsertRecord(s.DB, r); err != nil {
			counts["error"] += 1
			glog.Warningf("error storing in sqlite DB: %s\n", err)
			continue
		}
		counts["success"] += 1
		if counts["total"]%sqliteRecordCountInfo == 0 {
			glog.Infof("Journal export counts: %+v\n", counts)
		}
	}

	return nil
}

func sqliteCreateTableIfNotExists(db *sql.DB) error {
	statement, err := db.Prepare(sqliteCreateTableTmpl)
	if err != nil {
		return err
	}
	if _, err := statement.Exec(); err != nil {
		return err
	}

	return nil
}

func sqliteInsertRecord(db *sql.DB, r sdr.StepRecord) error {
	statement, err := db.Prepare(sqliteInsertRecordTmpl)
	if err != nil {
		return err
	}
	if _, err := statement.Exec(r.Identifier, r.Source, r.Segment, r.StepIndex, r.FreqCenterHz, r.LOOffsetHz, r.SettleCount, r.CopyCount, r.Start.UnixMilli(), r.End.UnixMilli()); err != nil {
		return err
	}

	return nil
}
