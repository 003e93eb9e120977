// Package mqtt provides the optional MQTT link used to mirror device status
// to a broker and accept commands from it.
//
// Each device owns a small topic tree (see Topics):
//
//	openvibe/<deviceId>/status        retained JSON status snapshot
//	openvibe/<deviceId>/command       command payloads, same format as the transports
//	openvibe/<deviceId>/availability  "online" / "offline" with LWT
//
// The client never blocks its caller on the network. Connect starts a
// background connection, PublishAsync drops messages while offline and
// subscriptions are restored on every reconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, identity.DeviceID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SubscribeCommands(func(topic string, payload []byte) error {
//	    return inbox.Post(...)
//	})
//	client.PublishStatus(snapshotJSON)
package mqtt
