package monitor

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                  chan struct{}
	startedHandler        func(MonitorStarted)
	checkHandler          func(CheckCompleted)
	recordedHandler       func(TransferRecorded)
	skippedHandler        func(TransferSkipped)
	reconciliationHandler func(ReconciliationCompleted)
	pollingErrorHandler   func(PollingError)
	processingHandler     func(ProcessingFailed)
	shutdownHandler       func(MonitorShutdown)
}

// OnMonitorStarted sets the handler for MonitorStarted events
func OnMonitorStarted(fn func(MonitorStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.startedHandler = fn }
}

// OnCheckCompleted sets the handler for CheckCompleted events
func OnCheckCompleted(fn func(CheckCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.checkHandler = fn }
}

// OnTransferRecorded sets the handler for TransferRecorded events
func OnTransferRecorded(fn func(TransferRecorded)) func(*Subscriber) {
	return func(s *Subscriber) { s.recordedHandler = fn }
}

// OnTransferSkipped sets the handler for TransferSkipped events
func OnTransferSkipped(fn func(TransferSkipped)) func(*Subscriber) {
	return func(s *Subscriber) { s.skippedHandler = fn }
}

// OnReconciliationCompleted sets the handler for ReconciliationCompleted events
func OnReconciliationCompleted(fn func(ReconciliationCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.reconciliationHandler = fn }
}

// OnPollingError sets the handler for PollingError events
func OnPollingError(fn func(PollingError)) func(*Subscriber) {
	return func(s *Subscriber) { s.pollingErrorHandler = fn }
}

// OnProcessingFailed sets the handler for ProcessingFailed events
func OnProcessingFailed(fn func(ProcessingFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.processingHandler = fn }
}

// OnMonitorShutdown sets the handler for MonitorShutdown events
func OnMonitorShutdown(fn func(MonitorShutdown)) func(*Subscriber) {
	return func(s *Subscriber) { s.shutdownHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	closer := monitor.NewSubscriber(events,
//	  monitor.OnTransferRecorded(func(e monitor.TransferRecorded) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                  make(chan struct{}),
		startedHandler:        func(MonitorStarted) {},          // nop by default
		checkHandler:          func(CheckCompleted) {},          // nop by default
		recordedHandler:       func(TransferRecorded) {},        // nop by default
		skippedHandler:        func(TransferSkipped) {},         // nop by default
		reconciliationHandler: func(ReconciliationCompleted) {}, // nop by default
		pollingErrorHandler:   func(PollingError) {},            // nop by default
		processingHandler:     func(ProcessingFailed) {},        // nop by default
		shutdownHandler:       func(MonitorShutdown) {},         // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case MonitorStarted:
				s.startedHandler(e)
			case CheckCompleted:
				s.checkHandler(e)
			case TransferRecorded:
				s.recordedHandler(e)
			case TransferSkipped:
				s.skippedHandler(e)
			case ReconciliationCompleted:
				s.reconciliationHandler(e)
			case PollingError:
				s.pollingErrorHandler(e)
			case ProcessingFailed:
				s.processingHandler(e)
			case MonitorShutdown:
				s.shutdownHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
