package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/ohleck/gr-analyzer/sdr"
)

const (
	contentType            = "application/json"
	journalEndpoint        = "analyzer/v1/journal"
	defaultSendBatchAmount = 100
)

// AnalyzerServer batches journal records and POSTs them to a remote
// ingestion server.
type AnalyzerServer struct {
	Server          string
	SendBatchAmount int
}

func (s *AnalyzerServer) Write(ctx context.Context, records <-chan sdr.StepRecord) error {
	type journalResponse struct {
		Status      string `json:"status"`
		RecordCount int    `json:"recordCount"`
	}

	sendBatchAmount := defaultSendBatchAmount
	if s.SendBatchAmount > 0 {
		sendBatchAmount = s.SendBatchAmount
	}

	var batch []sdr.StepRecord
	send := func() {
		body, err := json.Marshal(batch)
		if err != nil {
			glog.Warningf("error marshalling journal batch to JSON: %s\n", err)
			return
		}

		resp, err := http.Post(fmt.Sprintf("%s/%s", strings.TrimRight(s.Server, "/"), journalEndpoint), contentType, bytes.NewBuffer(body))
		if err != nil {
			glog.Warningf("error POSTing journal batch: %s\n", err)
			return
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			glog.Warningf("error reading POST body: %s\n", err)
			return
		}

		journalResponseBody := journalResponse{}
		json.Unmarshal(respBody, &journalResponseBody)
		glog.Infof("submitted %v journal records to server %s", journalResponseBody.RecordCount, s.Server)
		batch = nil
	}

	for r := range records {
		batch = append(batch, r)
		if len(batch) < sendBatchAmount {
			continue // we haven't collected enough records to send yet
		}
		send()
	}
	if len(batch) > 0 {
		send()
	}

	return nil
}
