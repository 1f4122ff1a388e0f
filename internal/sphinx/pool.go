package sphinx

import (
	"log/slog"
	"sync"

	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/logging"
	"github.com/coinstash/vru-mesh/internal/recovery"
)

// Job is one packet queued for per-hop processing by a Pool.
type Job struct {
	Packet *Packet
	AD     []byte
}

// Result pairs a Job's outcome back with an opaque index the caller
// supplied, so results can be correlated after concurrent processing.
type Result struct {
	Index  int
	Output ProcessResult
	Err    error
}

// Pool runs Process concurrently across a fixed number of worker
// goroutines, recovering any panic a worker encounters (a malformed or
// adversarial packet should never take down the process processing it)
// and logging it instead — the goroutine pool SPEC_FULL.md's ambient
// stack section assigns to internal/recovery.
type Pool struct {
	c          curve.Curve
	sk         curve.Scalar
	hopCount   int
	payloadLen int
	logger     *slog.Logger
	jobs       chan indexedJob
	results    chan Result
	wg         sync.WaitGroup
}

type indexedJob struct {
	index int
	job   Job
}

// NewPool starts workers goroutines ready to process packets addressed to
// sk. Call Submit for each Job and Close once no more jobs will be
// submitted; Results yields a Result per submitted Job (order not
// guaranteed).
func NewPool(c curve.Curve, sk curve.Scalar, hopCount, payloadLen, workers int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		c:          c,
		sk:         sk,
		hopCount:   hopCount,
		payloadLen: payloadLen,
		logger:     logger,
		jobs:       make(chan indexedJob, workers),
		results:    make(chan Result, workers),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	defer recovery.RecoverWithLog(p.logger, "sphinx.Pool.worker")

	for ij := range p.jobs {
		out, err := Process(p.c, p.sk, ij.job.Packet, p.hopCount, p.payloadLen, ij.job.AD)
		p.results <- Result{Index: ij.index, Output: out, Err: err}
	}
}

// Submit queues a Job for processing, tagged with index for correlating
// its eventual Result.
func (p *Pool) Submit(index int, job Job) {
	p.jobs <- indexedJob{index: index, job: job}
}

// Results returns the channel Result values arrive on.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting new jobs and waits for in-flight workers to drain,
// then closes the results channel.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}
