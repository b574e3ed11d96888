// Package influxdb provides InfluxDB connectivity for the codec bridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, telemetry writing and health monitoring.
//
// # Purpose
//
// Every poll tick is recorded as one codec_telemetry point so link quality
// (jitter, packet loss, bitrate) can be graphed and alerted on after the fact.
//
//	codec_telemetry,codec_id=studio-a,codec_type=Merlin\ PLUS,profile=Music\ HQ jitter=6,packet_loss=0.02,...
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCodecTelemetry("studio-a", influxdb.CodecSample{Jitter: 6, Connected: true})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered via SetOnError.
// Connection and health check errors are returned directly.
package influxdb
