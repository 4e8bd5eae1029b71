package transport

import (
	"github.com/hupe1980/ivfshard/ivf"
)

// Local dispatches a Request directly against an in-process shard, with no
// serialization or network round trip. Server uses one to answer RPCs for
// its shard.
type Local struct {
	shard *ivf.Shard
}

// NewLocal wraps shard for direct, in-process dispatch.
func NewLocal(shard *ivf.Shard) *Local {
	return &Local{shard: shard}
}

// Search scans req.Centroids against the wrapped shard's postings.
func (l *Local) Search(req Request) (Response, error) {
	if len(req.Centroids) == 0 || req.K == 0 {
		return Response{Status: StatusBadRequest}, nil
	}

	hits, err := l.shard.SearchLocal(req.Centroids, req.Query, int(req.K))
	if err != nil {
		return Response{Status: StatusUnavailable}, err
	}

	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{ID: h.ID, Distance: h.Distance}
	}
	return Response{Hits: out, Status: StatusOK}, nil
}
