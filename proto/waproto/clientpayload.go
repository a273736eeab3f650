// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waproto

// Enums used inside ClientPayload. The values are part of the wire contract.
type UserAgentPlatform int32

const (
	UserAgentPlatformAndroid UserAgentPlatform = 0
	UserAgentPlatformIOS     UserAgentPlatform = 1
	UserAgentPlatformWeb     UserAgentPlatform = 14
)

type UserAgentReleaseChannel int32

const (
	ReleaseChannelRelease UserAgentReleaseChannel = 0
	ReleaseChannelBeta    UserAgentReleaseChannel = 1
)

type WebSubPlatform int32

const (
	WebSubPlatformBrowser WebSubPlatform = 0
	WebSubPlatformAppStore WebSubPlatform = 1
	WebSubPlatformWinStore WebSubPlatform = 2
	WebSubPlatformDarwin   WebSubPlatform = 3
	WebSubPlatformWin32    WebSubPlatform = 4
)

type ConnectType int32

const (
	ConnectTypeCellularUnknown ConnectType = 0
	ConnectTypeWifiUnknown     ConnectType = 1
)

type ConnectReason int32

const (
	ConnectReasonPush          ConnectReason = 0
	ConnectReasonUserActivated ConnectReason = 1
)

type AppVersion struct {
	Primary    uint32
	Secondary  uint32
	Tertiary   uint32
	Quaternary uint32
}

func (av *AppVersion) marshal() []byte {
	var data []byte
	data = appendUvarint(data, 1, uint64(av.Primary))
	data = appendUvarint(data, 2, uint64(av.Secondary))
	data = appendUvarint(data, 3, uint64(av.Tertiary))
	if av.Quaternary != 0 {
		data = appendUvarint(data, 4, uint64(av.Quaternary))
	}
	return data
}

type UserAgent struct {
	Platform       UserAgentPlatform
	AppVersion     *AppVersion
	Mcc            string
	Mnc            string
	OsVersion      string
	Manufacturer   string
	Device         string
	OsBuildNumber  string
	ReleaseChannel UserAgentReleaseChannel
	LocaleLanguageISO6391       string
	LocaleCountryISO31661Alpha2 string
}

func (ua *UserAgent) marshal() []byte {
	var data []byte
	data = appendUvarint(data, 1, uint64(ua.Platform))
	if ua.AppVersion != nil {
		data = appendBytes(data, 2, ua.AppVersion.marshal())
	}
	data = appendString(data, 3, ua.Mcc)
	data = appendString(data, 4, ua.Mnc)
	data = appendString(data, 5, ua.OsVersion)
	data = appendString(data, 6, ua.Manufacturer)
	data = appendString(data, 7, ua.Device)
	data = appendString(data, 8, ua.OsBuildNumber)
	data = appendUvarint(data, 10, uint64(ua.ReleaseChannel))
	data = appendString(data, 11, ua.LocaleLanguageISO6391)
	data = appendString(data, 12, ua.LocaleCountryISO31661Alpha2)
	return data
}

type WebInfo struct {
	RefToken       string
	Version        string
	WebSubPlatform WebSubPlatform
}

func (wi *WebInfo) marshal() []byte {
	var data []byte
	data = appendString(data, 1, wi.RefToken)
	data = appendString(data, 2, wi.Version)
	data = appendUvarint(data, 4, uint64(wi.WebSubPlatform))
	return data
}

// DevicePairingRegistrationData carries the Signal identity material in the
// registration variant of the client payload.
type DevicePairingRegistrationData struct {
	ERegID      []byte
	EKeytype    []byte
	EIdent      []byte
	ESkeyID     []byte
	ESkeyVal    []byte
	ESkeySig    []byte
	BuildHash   []byte
	DeviceProps []byte
}

func (dp *DevicePairingRegistrationData) marshal() []byte {
	var data []byte
	data = appendBytes(data, 1, dp.ERegID)
	data = appendBytes(data, 2, dp.EKeytype)
	data = appendBytes(data, 3, dp.EIdent)
	data = appendBytes(data, 4, dp.ESkeyID)
	data = appendBytes(data, 5, dp.ESkeyVal)
	data = appendBytes(data, 6, dp.ESkeySig)
	data = appendBytes(data, 7, dp.BuildHash)
	data = appendBytes(data, 8, dp.DeviceProps)
	return data
}

// ClientPayload is the payload sent inside the clientFinish handshake message.
// Login sessions set Username/Device, fresh registrations set DevicePairingData.
type ClientPayload struct {
	Username          uint64
	Passive           bool
	UserAgent         *UserAgent
	WebInfo           *WebInfo
	PushName          string
	ConnectType       ConnectType
	ConnectReason     ConnectReason
	Device            uint32
	DevicePairingData *DevicePairingRegistrationData
	Pull              bool
}

func (cp *ClientPayload) Marshal() ([]byte, error) {
	var data []byte
	if cp.Username != 0 {
		data = appendUvarint(data, 1, cp.Username)
	}
	data = appendBool(data, 3, cp.Passive)
	if cp.UserAgent != nil {
		data = appendBytes(data, 5, cp.UserAgent.marshal())
	}
	if cp.WebInfo != nil {
		data = appendBytes(data, 6, cp.WebInfo.marshal())
	}
	data = appendString(data, 7, cp.PushName)
	data = appendUvarint(data, 12, uint64(cp.ConnectType))
	data = appendUvarint(data, 13, uint64(cp.ConnectReason))
	if cp.Username != 0 {
		data = appendUvarint(data, 18, uint64(cp.Device))
	}
	if cp.DevicePairingData != nil {
		data = appendBytes(data, 19, cp.DevicePairingData.marshal())
	}
	data = appendBool(data, 33, cp.Pull)
	return data, nil
}

// DevicePropsPlatformType mirrors the companion registration platform enum.
type DevicePropsPlatformType int32

const (
	DevicePropsPlatformUnknown DevicePropsPlatformType = 0
	DevicePropsPlatformChrome  DevicePropsPlatformType = 1
	DevicePropsPlatformFirefox DevicePropsPlatformType = 2
	DevicePropsPlatformIE      DevicePropsPlatformType = 3
	DevicePropsPlatformOpera   DevicePropsPlatformType = 4
	DevicePropsPlatformSafari  DevicePropsPlatformType = 5
	DevicePropsPlatformEdge    DevicePropsPlatformType = 6
	DevicePropsPlatformDesktop DevicePropsPlatformType = 7
)

// DeviceProps describes this companion to the phone; the OS name is what shows
// up in the linked devices list.
type DeviceProps struct {
	Os              string
	Version         *AppVersion
	PlatformType    DevicePropsPlatformType
	RequireFullSync bool
}

func (dp *DeviceProps) Marshal() ([]byte, error) {
	var data []byte
	data = appendString(data, 1, dp.Os)
	if dp.Version != nil {
		data = appendBytes(data, 2, dp.Version.marshal())
	}
	data = appendUvarint(data, 3, uint64(dp.PlatformType))
	data = appendBool(data, 4, dp.RequireFullSync)
	return data, nil
}
