package local

import (
	"errors"

	"github.com/nemanja-m/diskmr/pkg/sink"
	"github.com/nemanja-m/diskmr/pkg/store"
)

// materialize drains every reduced bucket into the destination sink.
func (e *Engine) materialize() (sink.Sink, error) {
	buckets, err := e.reduceStore.Buckets()
	if err != nil {
		return nil, err
	}

	out := e.job.Output
	owned := out == nil
	if owned {
		spec := sink.Spec{Kind: sink.KindMemory}
		if e.job.OutputSpec != nil {
			spec = *e.job.OutputSpec
		}
		out, err = sink.Open(spec, sink.BinsFor(len(buckets)))
		if err != nil {
			return nil, err
		}
	}

	var total int
	for _, bucket := range buckets {
		records, err := store.ReadRecords(bucket.Chunks)
		if err != nil {
			return nil, errors.Join(err, closeOwned(out, owned))
		}
		if err := out.Append(records); err != nil {
			return nil, errors.Join(err, closeOwned(out, owned))
		}
		total += len(records)
	}

	e.logger.Info("Materialized output", "job_id", e.ws.ID, "kind", string(out.Kind()), "num_keys", len(buckets), "num_records", total)
	if err := closeOwned(out, owned); err != nil {
		return nil, err
	}
	return out, nil
}

func closeOwned(out sink.Sink, owned bool) error {
	if !owned {
		return nil
	}
	return out.Close()
}
