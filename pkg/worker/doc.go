/*
Package worker provides a fixed-size worker pool that runs submitted jobs
asynchronously and shuts down without leaking goroutines.

# Overview

A Pool owns N workers and the only sender of an unbounded job queue
(package queue). Every worker shares the queue's receiver and loops:
wait for a job, run it to completion, wait again. Submission appends to
the queue and returns immediately; it never blocks on capacity.

# Core Components

## Pool

- Fixed number of worker goroutines, all started by NewPool
- Non-blocking Submit and fire-and-forget Execute
- Shutdown that closes the queue and joins every worker
- Statistics and optional Prometheus metrics

## Worker

Single worker goroutine with three states:

	running --job--> executing --done--> running
	running --queue closed and empty--> terminated
	executing --job panicked--> terminated

A job that panics terminates its worker. The panic is recovered, logged,
handed to the configured ErrorHandler and reported again by Shutdown. The
worker is not replaced, so the pool permanently loses one worker. Once
every worker has terminated, Submit returns types.ErrNoLiveWorkers.

# Shutdown

Shutdown closes the queue first; that is what wakes workers blocked on an
empty queue. Workers drain the jobs already queued, then exit. Shutdown
joins each worker in id order and never stops early, even when a worker
ended in a fault. A job that never returns blocks Shutdown forever.
ShutdownNow drops the queued jobs before joining.

# Usage Examples

Basic usage:

	pool, err := worker.NewPool(&worker.PoolConfig{PoolSize: 4})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown()

	pool.Execute(func() {
		// Execute work
	})

Fatal construction, matching a programming error:

	pool := worker.MustNewPool(4) // panics on size <= 0

Retrieve statistics:

	stats := pool.Stats()
	fmt.Printf("Live Workers: %d/%d\n", stats.LiveWorkers, stats.PoolSize)
	fmt.Printf("Executed: %d, Panicked: %d\n", stats.Executed, stats.Panicked)

# Configuration Options

PoolConfig supports the following configurations:
  - PoolSize: Number of worker goroutines
  - Clock: Time source for execution timing and join warnings
  - Logger: logrus logger for pool and worker logs
  - ErrorHandler: Called with the fault of a panicking job
  - JoinWarnInterval: How often Shutdown reports a worker still busy
  - MetricsRegisterer, MetricsNamespace: Prometheus registration
*/
package worker
