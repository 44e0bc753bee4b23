package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/kpxlab/marketrag/pkg/natsutil"
)

const (
	// Subject carries indexing jobs.
	Subject = "marketrag.ingest"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "marketrag.ingest.dlq"
	// MaxRetries before a job lands in the DLQ.
	MaxRetries = 3
)

// dlqMessage wraps a failed job with its final error.
type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs each job through
// the pipeline. Failed jobs are re-published with an incremented
// X-Retry-Count header and moved to the DLQ once MaxRetries is reached.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return natsutil.SubscribeMsg(nc, Subject, func(ctx context.Context, job Job, msg *nats.Msg) {
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				retries, _ = strconv.Atoi(v)
			}
		}

		stored, err := Run(ctx, deps, job)
		if err == nil {
			log.Info("ingest: indexed", "doc_id", stored.DocID, "chunks", stored.Chunks)
			return
		}

		retries++
		log.Error("ingest: job failed", "doc_id", job.Doc.ID, "retry", retries, "error", err)

		if retries >= MaxRetries {
			dlq := dlqMessage{Job: job, Error: err.Error(), Retries: retries}
			data, _ := json.Marshal(dlq)
			if err := nc.Publish(DLQSubject, data); err != nil {
				log.Error("ingest: DLQ publish failed", "doc_id", job.Doc.ID, "error", err)
			}
			return
		}

		header := nats.Header{}
		header.Set("X-Retry-Count", strconv.Itoa(retries))
		if err := natsutil.PublishWithHeaders(ctx, nc, Subject, job, header); err != nil {
			log.Error("ingest: retry publish failed", "doc_id", job.Doc.ID, "error", err)
		}
	})
}
