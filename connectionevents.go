// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/types/events"
)

func (cli *Client) handleStreamError(node *waBinary.Node) {
	cli.isLoggedIn.Store(false)
	ag := node.AttrGetter()
	code := ag.OptionalString("code")
	conflict, _ := node.GetOptionalChildByTag("conflict")
	conflictType := conflict.AttrGetter().OptionalString("type")
	switch {
	case code == "515":
		cli.Log.Infof("Got 515 code, server wants us to restart the connection")
		go cli.disconnectWithReason(events.ConnectFailureRestartRequired)
	case code == "401" && conflictType == "device_removed":
		cli.Log.Infof("Got device removed stream error, sending LoggedOut event and deleting session")
		go cli.handleLoggedOut(false, events.ConnectFailureLoggedOut)
	case conflictType == "replaced":
		cli.Log.Infof("Got replaced stream error, sending ConnectionReplaced event")
		cli.expectDisconnect()
		go cli.dispatchEvent(&events.ConnectionReplaced{})
		go cli.disconnectWithReason(events.ConnectFailureReplaced)
	case cli.recentlyPaired.Load():
		// A non-515 stream error right after pairing means the handshake
		// state is broken rather than a routine restart request.
		cli.Log.Warnf("Got stream error with code %s right after pairing, treating as bad session", code)
		go cli.disconnectWithReason(events.ConnectFailureBadSession)
	default:
		cli.Log.Errorf("Unknown stream error: %s", node.XMLString())
		go cli.dispatchEvent(&events.StreamError{Code: code, Raw: node})
		go cli.disconnectWithReason(events.ConnectFailureConnectionClosed)
	}
}

func (cli *Client) handleConnectFailure(node *waBinary.Node) {
	ag := node.AttrGetter()
	reason := events.ConnectFailureReason(ag.Int("reason"))
	message := ag.OptionalString("message")
	cli.expectDisconnect()
	switch {
	case reason.IsLoggedOut():
		cli.Log.Infof("Got %s connect failure, sending LoggedOut event and deleting session", reason)
		go cli.handleLoggedOut(true, reason)
	case reason == events.ConnectFailureReplaced:
		cli.Log.Infof("Got replaced connect failure, sending ConnectionReplaced event")
		go cli.dispatchEvent(&events.ConnectionReplaced{})
		go cli.disconnectWithReason(reason)
	default:
		cli.Log.Warnf("Unknown connect failure: %s", node.XMLString())
		go cli.dispatchEvent(&events.ConnectFailure{Reason: reason, Message: message, Raw: node})
		go cli.disconnectWithReason(reason)
	}
}

func (cli *Client) handleLoggedOut(onConnect bool, reason events.ConnectFailureReason) {
	cli.disconnectWithReason(reason)
	err := cli.Store.Delete()
	if err != nil {
		cli.Log.Warnf("Failed to delete store after logout: %v", err)
	}
	cli.dispatchEvent(&events.LoggedOut{OnConnect: onConnect, Reason: reason})
}

func (cli *Client) handleConnectSuccess(node *waBinary.Node) {
	cli.Log.Infof("Successfully authenticated")
	cli.isLoggedIn.Store(true)
	if lid := node.AttrGetter().OptionalString("lid"); len(lid) > 0 {
		cli.Log.Debugf("Server said our hidden user ID is %s", lid)
	}
	go func() {
		count, err := cli.getServerPreKeyCount()
		if err != nil {
			cli.Log.Errorf("Failed to get number of prekeys on server: %v", err)
		} else if count <= MinPreKeyCount {
			cli.uploadPreKeys()
		}
		err = cli.SetPassive(false)
		if err != nil {
			cli.Log.Warnf("Failed to send post-connect passive IQ: %v", err)
		}
		cli.dispatchEvent(&events.Connected{})
	}()
}

func (cli *Client) handleIB(node *waBinary.Node) {
	children := node.GetChildren()
	for _, child := range children {
		ag := child.AttrGetter()
		switch child.Tag {
		case "downgrade_webclient":
			cli.Log.Warnf("Got downgrade_webclient notification, this account is not on multidevice")
		case "offline":
			count := ag.OptionalInt("count")
			cli.Log.Debugf("Server said it finished sending %d offline notifications", count)
			go cli.dispatchEvent(&events.OfflineSyncCompleted{Count: count})
		}
	}
}

// SetPassive tells the WhatsApp server whether this device is passive or not.
//
// This seems to mostly affect whether the device receives certain events.
// By default, wawire will automatically do SetPassive(false) after connecting.
func (cli *Client) SetPassive(passive bool) error {
	tag := "active"
	if passive {
		tag = "passive"
	}
	_, err := cli.sendIQ(infoQuery{
		Namespace: "passive",
		Type:      iqSet,
		To:        types.ServerJID,
		Content:   []waBinary.Node{{Tag: tag}},
	})
	return err
}
