// Package codec is a polling client for Tieline broadcast audio codecs
// (Merlin, Bridge-IT) speaking the device's REST API.
//
// The package is layered leaf to root:
//
//   - Gateway: one HTTP attempt per call, JSON in and out, *GatewayError on failure
//   - Merge: folds a partial Snapshot into the running DeviceState
//   - Scheduler: a single fixed-interval timer driving the poll cycle
//   - Quality, FormatDuration, Export: read-only presentation helpers
//   - Client: owns the session, the state and the scheduler
//
// # Poll Cycle
//
// Each tick fetches an ordered list of Sources (by default /status then
// /connection/statistics). Every response is merged as it arrives. A failed
// source is logged and recorded in the CycleResult; later sources still run
// and the callback still receives the merged state.
//
// # Presence
//
// Snapshot fields are pointers: nil means the device did not report the
// field, so the previous value is kept. Zero and false are real values.
// ClientOptions.FalsyMerge restores the older behaviour of treating them as
// absent for firmware that reports placeholders.
//
// # Usage
//
//	client := codec.NewClient(codec.ClientOptions{Logger: log})
//	if _, err := client.Connect(ctx, codec.ConnectParams{Host: "192.168.1.50"}); err != nil {
//	    return err
//	}
//	client.StartPolling(2*time.Second, func(st codec.DeviceState, _ codec.CycleResult) {
//	    fmt.Println(codec.Export(st, time.Now()).Network.Quality)
//	})
//	defer client.Disconnect()
package codec
