// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"errors"
	"fmt"

	"github.com/profchaos/wawire/binary"
)

// Miscellaneous errors
var (
	ErrClientIsNil          = errors.New("client is nil")
	ErrIQUnexpectedResponse = errors.New("unexpected info query response")
	ErrIQTimedOut           = errors.New("info query timed out")
	ErrNotConnected         = errors.New("websocket not connected")
	ErrNotLoggedIn          = errors.New("the store doesn't contain a device JID")
	ErrAlreadyConnected     = errors.New("websocket is already connected")

	ErrQRAlreadyConnected = errors.New("GetQRChannel must be called before connecting")
	ErrQRStoreContainsID  = errors.New("GetQRChannel can only be called when there's no user ID in the client's Store")

	ErrPairInvalidDeviceIdentityHMAC = errors.New("invalid device identity HMAC in pair success message")
	ErrPairInvalidDeviceSignature    = errors.New("invalid device signature in pair success message")
	ErrPairRejectedLocally           = errors.New("local callback rejected pairing")
)

// DisconnectedError is returned by sendIQ if the websocket disconnects
// before the request responds.
type DisconnectedError struct {
	Action string
	Node   *binary.Node
}

func (err *DisconnectedError) Error() string {
	return fmt.Sprintf("websocket disconnected before %s returned response", err.Action)
}

// IQError is a generic error container for info query responses.
type IQError struct {
	Code    int
	Text    string
	RawNode *binary.Node
}

// Common errors returned by info queries for use with errors.Is
var (
	ErrIQBadRequest     error = &IQError{Code: 400, Text: "bad-request"}
	ErrIQNotAuthorized  error = &IQError{Code: 401, Text: "not-authorized"}
	ErrIQForbidden      error = &IQError{Code: 403, Text: "forbidden"}
	ErrIQNotFound       error = &IQError{Code: 404, Text: "item-not-found"}
	ErrIQNotAcceptable  error = &IQError{Code: 406, Text: "not-acceptable"}
	ErrIQGone           error = &IQError{Code: 410, Text: "gone"}
	ErrIQResourceLimit  error = &IQError{Code: 419, Text: "resource-limit"}
	ErrIQLocked         error = &IQError{Code: 423, Text: "locked"}
	ErrIQRateOverLimit  error = &IQError{Code: 429, Text: "rate-overlimit"}
	ErrIQInternalError  error = &IQError{Code: 500, Text: "internal-server-error"}
	ErrIQServiceUnavailable error = &IQError{Code: 503, Text: "service-unavailable"}
	ErrIQPartialServerError error = &IQError{Code: 530, Text: "partial-server-error"}
)

func parseIQError(res *binary.Node) error {
	var err IQError
	err.RawNode = res
	val, ok := res.GetOptionalChildByTag("error")
	if ok {
		ag := val.AttrGetter()
		err.Code = ag.OptionalInt("code")
		err.Text = ag.OptionalString("text")
	}
	return &err
}

func (iqe *IQError) Error() string {
	if iqe.Code == 0 {
		if iqe.RawNode != nil {
			return fmt.Sprintf("info query returned unexpected response: %s", iqe.RawNode.XMLString())
		}
		return "unknown info query error"
	}
	return fmt.Sprintf("info query returned status %d: %s", iqe.Code, iqe.Text)
}

func (iqe *IQError) Is(other error) bool {
	otherIQE, ok := other.(*IQError)
	if !ok {
		return false
	}
	if iqe.Code != 0 && otherIQE.Code != 0 {
		return otherIQE.Code == iqe.Code && otherIQE.Text == iqe.Text
	}
	return false
}
