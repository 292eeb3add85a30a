package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang/glog"

	"github.com/ohleck/gr-analyzer/sdr"
)

const (
	mysqlRecordCountInfo = 1000

	mysqlCreateTableTmpl = `CREATE TABLE IF NOT EXISTS sweep_journal (
		ID            INTEGER NOT NULL PRIMARY KEY AUTO_INCREMENT,
		Identifier    TEXT NOT NULL,
		Source        TEXT NOT NULL,
		Segment       INTEGER,
		StepIndex     INTEGER,
		FreqCenterHz  REAL,
		LOOffsetHz    REAL,
		SettleCount   INTEGER,
		CopyCount     INTEGER,
		` + "`Start`" + ` BIGINT,
		` + "`End`" + ` BIGINT
	);`
	mysqlInsertRecordTmpl = `INSERT INTO sweep_journal (
		Identifier,
		Source,
		Segment,
		StepIndex,
		FreqCenterHz,
		LOOffsetHz,
		SettleCount,
		CopyCount,
		` + "`Start`" + `,
		` + "`End`" + `
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

type MySQL struct {
	DB *sql.DB
}

func (m *MySQL) Write(ctx context.Context, records <-chan sdr.StepRecord) error {
	if err := mysqlCreateTableIfNotExists(m.DB); err != nil {
		return fmt.Errorf("unable to create table: %s", err)
	}

	counts := map[string]int{
		"error":   0,
		"success": 0,
		"total":   0,
	}
	for r := range records {
		counts["total"] += 1
		if err := mysqlInsertRecord(m.DB, r); err != nil {
			counts["error"] += 1
			glog.Warningf("error storing in MySQL DB: %s\n", err)
			continue
		}
		counts["success"] += 1
		if counts["total"]%mysqlRecordCountInfo == 0 {
			glog.Infof("Journal export counts: %+v\n", counts)
		}
	}

	return nil
}

func mysqlCreateTableIfNotExists(db *sql.DB) error {
	statement, err := db.Prepare(mysqlCreateTableTmpl)
	if err != nil {
		return err
	}
	if _, err := statement.Exec(); err != nil {
		return err
	}

	return nil
}

func mysqlInsertRecord(db *sql.DB, r sdr.StepRecord) error {
	statement, err := db.Prepare(mysqlInsertRecordTmpl)
	if err != nil {
		return err
	}
	if _, err := statement.Exec(r.Identifier, r.Source, r.Segment, r.StepIndex, r.FreqCenterHz, r.LOOffsetHz, r.SettleCount, r.CopyCount, r.Start.UnixMilli(), r.End.UnixMilli()); err != nil {
		return err
	}

	return nil
}
