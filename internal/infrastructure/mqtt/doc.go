// Package mqtt is the bridge's broker connection.
//
// MQTT is the bridge's platform-facing surface: decoded RF events and
// per-device state go out on rfbridge topics, raw gateway commands and
// pairing requests come back in on command topics, and the health topic
// carries a retained status with a Last Will armed for crashes.
//
//	RfPlayer gateway <-> bridge <-> broker <-> home-automation platform
//
// The wrapper adds what paho leaves to the application: subscriptions that
// survive reconnects, panic recovery around handlers, payload size limits
// and the online/offline status protocol on the health topic. Topic
// construction lives in topics.go so the scheme has one definition.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.CommandRaw(), 1, handleRawCommand)
//
// TLS (broker.tls) is expected anywhere the broker is not on localhost.
package mqtt
