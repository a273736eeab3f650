// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package token contains the token dictionaries for the binary node codec.
//
// The dictionaries are fixed and part of the wire contract: strings present
// here must be emitted as dictionary references, never inline, or the server
// rejects the stanza.
package token

import (
	"fmt"
)

// SingleByteTokens is the dictionary of tokens that are referenced with a
// single byte. Indexes 0-2 overlap with the ListEmpty and StreamEnd markers
// and are never used for strings.
var SingleByteTokens = [...]string{
	"", "xmlstreamstart", "xmlstreamend", "s.whatsapp.net", "type", "participant", "from", "receipt", "id",
	"broadcast", "status", "message", "notification", "notify", "to", "jid", "user", "class", "offline",
	"g.us", "result", "mediatype", "enc", "skmsg", "off_cnt", "xmlns", "presence", "participants", "ack",
	"t", "iq", "device_hash", "read", "value", "media", "picture", "chatstate", "unavailable", "text",
	"urn:xmpp:whatsapp:push", "devices", "account", "encrypt", "backup", "category", "available",
	"relaylatency", "actual_actors", "device", "creation", "location", "groups", "w:profile:picture",
	"options", "invite", "clean", "w:p", "ping", "pong", "composing", "paused", "recording", "w:stats",
	"state", "unsubscribe", "subscribe", "config", "config_value", "config_code", "config_expo_param",
	"w:m", "identity", "w:gp2", "create", "subject", "leave", "add", "remove", "promote", "demote",
	"admin", "superadmin", "owner", "locked", "unlocked", "announcement", "not_announcement", "member",
	"count", "get", "set", "error", "failure", "success", "stream:error", "code", "conflict", "replaced",
	"device_removed", "pair-device", "pair-device-sign", "pair-success", "ref", "platform", "biz", "name",
	"active", "passive", "registration", "key", "skey", "signature", "list", "verified_name", "profile",
	"w:sync:app:state", "delivery", "played", "retry", "call", "offer", "terminate", "relay", "latency",
	"primary", "sessions", "prekeys", "description", "invis", "urn:xmpp:ping", "w:biz", "verified_level",
	"preview", "image", "video", "audio", "document", "sticker", "url", "mimetype", "filehash", "size",
	"media_conn", "host", "ttl", "auth", "auth_ttl", "fbid", "lid", "usync", "query", "contact",
	"sidelist", "last", "before", "after", "context", "background", "mode", "mute", "archive", "pin",
	"star", "unstar", "clear", "delete", "item", "chat", "action", "battery", "plugged", "props", "prop",
	"version", "0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "web", "remove-companion-device",
	"companion_enc_static", "md-app-state", "md-migrate", "ib", "downgrade_webclient", "dirty",
	"groups_v4_invite", "tctoken", "disappearing_mode", "duration", "attestation", "w:auth:backup:token",
	"crypto", "phash", "2:47DEQpj8", "multicast", "edge_routing", "routing_info", "device-identity",
	"smax_id", "frskmsg", "w:web", "fallback_hostname", "fallback_ip4", "fallback_ip6", "hostname",
	"ip4", "ip6", "reason", "privacy", "privacy_token", "readreceipts", "profilepicture", "groupadd",
	"all", "contacts", "contact_blacklist", "none", "match_last_seen", "unknown",
}

// DoubleByteTokens is the token dictionary that is referenced with a
// dictionary marker byte followed by an index byte. There are four banks,
// selected by the marker (Dictionary0-Dictionary3).
var DoubleByteTokens = [...][]string{
	{
		"media-gig2-1.cdn.whatsapp.net", "media-bog1-1.cdn.whatsapp.net", "media-mia3-1.cdn.whatsapp.net",
		"media-mia3-2.cdn.whatsapp.net", "media-eze1-1.cdn.whatsapp.net", "hist_sync", "app_state_sync_key",
		"app_state_sync_key_id", "app_state_sync_key_data", "app_state_sync_key_fingerprint",
		"app_state_sync_key_share", "app_state_sync_key_request", "initial_security_notification",
		"critical_block", "critical_unblock_low", "regular_low", "regular_high", "regular",
		"fatal_exception", "sync", "collection", "patch", "snapshot", "mutation", "record", "index",
		"mac", "keys", "key_id", "value_mac", "snapshot_mac", "patch_mac",
	},
	{
		"poll_creation", "poll_update", "reaction", "keep_in_chat", "server_sync", "device_sync",
		"history_sync", "peer_msg", "recent_sticker", "status_mentions", "bot_response",
	},
	{
		"w:cert", "w:comms", "w:mex", "fb:thrift_iq", "message_secret", "payment_info", "transaction",
	},
	{
		"smb_hosted", "hosted_device", "companion_platform_id", "companion_platform_display",
	},
}

const (
	ListEmpty   = 0
	StreamEnd   = 2
	Dictionary0 = 236
	Dictionary1 = 237
	Dictionary2 = 238
	Dictionary3 = 239
	ADJID       = 247
	List8       = 248
	List16      = 249
	JIDPair     = 250
	Hex8        = 251
	Binary8     = 252
	Binary20    = 253
	Binary32    = 254
	Nibble8     = 255
)

const (
	PackedMax     = 127
	SingleByteMax = 256
)

var singleByteTokenIndex map[string]byte

type doubleByteTokenEntry struct {
	dictionary byte
	index      byte
}

var doubleByteTokenIndex map[string]doubleByteTokenEntry

func init() {
	singleByteTokenIndex = make(map[string]byte, len(SingleByteTokens))
	// Iterate backwards so duplicate entries resolve to the lowest index.
	for i := len(SingleByteTokens) - 1; i >= 3; i-- {
		singleByteTokenIndex[SingleByteTokens[i]] = byte(i)
	}
	doubleByteTokenIndex = make(map[string]doubleByteTokenEntry)
	for dict, tokens := range DoubleByteTokens {
		for i, tok := range tokens {
			doubleByteTokenIndex[tok] = doubleByteTokenEntry{byte(dict), byte(i)}
		}
	}
}

// GetSingleToken returns the string at the given index of the single-byte
// token dictionary.
func GetSingleToken(i int) (string, error) {
	if i < 3 || i >= len(SingleByteTokens) {
		return "", fmt.Errorf("index out of single byte token bounds %d", i)
	}
	return SingleByteTokens[i], nil
}

// GetDoubleToken returns the string at the given index of the given bank of
// the double-byte token dictionary.
func GetDoubleToken(index1, index2 int) (string, error) {
	if index1 < 0 || index1 >= len(DoubleByteTokens) {
		return "", fmt.Errorf("index out of double byte token bounds %d-%d", index1, index2)
	} else if index2 < 0 || index2 >= len(DoubleByteTokens[index1]) {
		return "", fmt.Errorf("index out of double byte token index %d bounds %d", index1, index2)
	}
	return DoubleByteTokens[index1][index2], nil
}

// IndexOfSingleToken looks up the index of the given string in the
// single-byte token dictionary.
func IndexOfSingleToken(token string) (val byte, ok bool) {
	val, ok = singleByteTokenIndex[token]
	return
}

// IndexOfDoubleByteToken looks up the bank and index of the given string in
// the double-byte token dictionary.
func IndexOfDoubleByteToken(token string) (byte, byte, bool) {
	val, ok := doubleByteTokenIndex[token]
	return val.dictionary, val.index, ok
}
