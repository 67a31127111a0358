// Package mqtt publishes booking confirmations to an MQTT broker so the
// equipment provider can follow up with the farmer.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a retained "online" message to the
// availability topic; a will message flips it to "offline" on an
// unexpected disconnect.
package mqtt
