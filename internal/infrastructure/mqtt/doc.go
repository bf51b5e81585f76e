// Package mqtt connects Hotel Core to the property's MQTT broker.
//
// Two flows run over it:
//
//	booking service ──hotel/room/{id}/status──▶ Hotel Core
//	Hotel Core ──hotel/breaker/{id}/state|alert──▶ dashboards, BMS
//
// Breaker state is published retained so a subscriber that connects late
// still sees the current position. Hotel Core's own availability is
// announced on hotel/system/status, with a Last Will so a crash reads as
// offline.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllRoomStatus(), 1, handler)
//
// Subscriptions are remembered and restored after a reconnect.
package mqtt
