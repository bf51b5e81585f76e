// Package influxdb records breaker telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	breaker_actions  tags: breaker_id, action, outcome   field: response_ms
//	breaker_state    tags: breaker_id                    fields: on, available
//
// Writes are non-blocking and batched by the client library. Write errors
// arrive asynchronously through the callback set with SetOnError; metrics
// are best effort and never fail a breaker operation.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reconciler := breaker.NewReconciler(breaker.ReconcilerDeps{
//	    Metrics: influxdb.NewBreakerMetrics(client),
//	    ...
//	})
package influxdb
