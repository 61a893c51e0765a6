package vfs

// asyncRequest is the VFS Request entity (spec §3): it lives until its
// worker produces a result and is owned exclusively by the worker once
// dequeued.
type asyncRequest struct {
	isWrite bool
	path    string
	flags   Flags
	blob    Blob
	readCb  ReadCallback
	writeCb WriteCallback
	user    interface{}
	exec    func(asyncRequest)
}

// asyncWorker is the single-thread FIFO disk worker from spec §4.1: "one
// thread, FIFO of VfsRequest, one semaphore." A buffered channel plus one
// goroutine gives the same ordering guarantee idiomatically.
type asyncWorker struct {
	queue chan asyncRequest
	done  chan struct{}
}

func newAsyncWorker() *asyncWorker {
	w := &asyncWorker{
		queue: make(chan asyncRequest, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *asyncWorker) run() {
	for {
		select {
		case req := <-w.queue:
			req.exec(req)
		case <-w.done:
			// The worker stops as soon as done is closed. Requests still in
			// the queue are not executed and their callbacks are not invoked.
			return
		}
	}
}

func (w *asyncWorker) submit(req asyncRequest) {
	select {
	case w.queue <- req:
	case <-w.done:
		// Worker already closed; report failure synchronously rather than
		// leaking the caller's callback unexecuted.
		if req.isWrite && req.writeCb != nil {
			req.writeCb(req.path, 0, req.blob, req.user)
		} else if !req.isWrite && req.readCb != nil {
			req.readCb(req.path, Blob{}, req.user)
		}
	}
}

func (w *asyncWorker) close() {
	close(w.done)
}
