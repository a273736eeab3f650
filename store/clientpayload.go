// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"go.mau.fi/libsignal/ecc"

	"github.com/profchaos/wawire/proto/waproto"
	"github.com/profchaos/wawire/types"
)

// WAVersionContainer is a container for a WhatsApp web version number
// (major, minor, patch, build).
type WAVersionContainer [4]uint32

// ParseVersion parses a version string (three or four dot-separated numbers)
// into a WAVersionContainer.
func ParseVersion(version string) (parsed WAVersionContainer, err error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return parsed, fmt.Errorf("'%s' doesn't contain three or four dot-separated parts", version)
	}
	for i, part := range parts {
		parsedPart, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return parsed, fmt.Errorf("part %d of '%s' is not a number: %w", i+1, version, err)
		}
		parsed[i] = uint32(parsedPart)
	}
	return
}

// LessThan returns true if this version is older than the other version.
func (vc WAVersionContainer) LessThan(other WAVersionContainer) bool {
	for i := range vc {
		if vc[i] != other[i] {
			return vc[i] < other[i]
		}
	}
	return false
}

// IsZero returns true if the version is zero.
func (vc WAVersionContainer) IsZero() bool {
	return vc == WAVersionContainer{}
}

// String returns the version number as a dot-separated string.
func (vc WAVersionContainer) String() string {
	parts := make([]string, 0, len(vc))
	for i, part := range vc {
		if i == 3 && part == 0 {
			continue
		}
		parts = append(parts, strconv.Itoa(int(part)))
	}
	return strings.Join(parts, ".")
}

// Hash returns the md5 hash of the String representation of this version.
func (vc WAVersionContainer) Hash() [16]byte {
	return md5.Sum([]byte(vc.String()))
}

func (vc WAVersionContainer) ProtoAppVersion() *waproto.AppVersion {
	return &waproto.AppVersion{
		Primary:    vc[0],
		Secondary:  vc[1],
		Tertiary:   vc[2],
		Quaternary: vc[3],
	}
}

// waVersion is the WhatsApp web client version to report to the server.
var waVersion = WAVersionContainer{2, 3000, 1015901307, 0}

// waVersionHash is the md5 hash of the dot-separated waVersion
var waVersionHash [16]byte

func init() {
	waVersionHash = waVersion.Hash()
}

// GetWAVersion gets the current WhatsApp web client version.
func GetWAVersion() WAVersionContainer {
	return waVersion
}

// SetWAVersion sets the WhatsApp web client version reported to the server.
func SetWAVersion(version WAVersionContainer) {
	if version.IsZero() {
		return
	}
	waVersion = version
	waVersionHash = version.Hash()
	BaseClientPayload.UserAgent.AppVersion = version.ProtoAppVersion()
}

// BaseClientPayload is the base of the payload sent in the clientFinish
// handshake message. The fields may be customized before connecting.
var BaseClientPayload = &waproto.ClientPayload{
	UserAgent: &waproto.UserAgent{
		Platform:       waproto.UserAgentPlatformWeb,
		ReleaseChannel: waproto.ReleaseChannelRelease,
		AppVersion:     waVersion.ProtoAppVersion(),
		Mcc:            "000",
		Mnc:            "000",
		OsVersion:      "0.1.0",
		Manufacturer:   "",
		Device:         "Desktop",
		OsBuildNumber:  "0.1.0",

		LocaleLanguageISO6391:       "en",
		LocaleCountryISO31661Alpha2: "en",
	},
	WebInfo: &waproto.WebInfo{
		WebSubPlatform: waproto.WebSubPlatformBrowser,
	},
	ConnectType:   waproto.ConnectTypeWifiUnknown,
	ConnectReason: waproto.ConnectReasonUserActivated,
}

// DeviceProps contains the data shown on the paired phone's linked devices
// page. Use SetOSInfo or SetBrowser to customize it.
var DeviceProps = &waproto.DeviceProps{
	Os:           "wawire",
	Version:      &waproto.AppVersion{Primary: 0, Secondary: 1, Tertiary: 0},
	PlatformType: waproto.DevicePropsPlatformUnknown,
}

// SetOSInfo sets the OS name and version that are shown in the linked
// devices list on the paired phone.
func SetOSInfo(name string, version [3]uint32) {
	DeviceProps.Os = name
	DeviceProps.Version = &waproto.AppVersion{Primary: version[0], Secondary: version[1], Tertiary: version[2]}
	BaseClientPayload.UserAgent.OsVersion = fmt.Sprintf("%d.%d.%d", version[0], version[1], version[2])
	BaseClientPayload.UserAgent.OsBuildNumber = BaseClientPayload.UserAgent.OsVersion
}

// SetBrowser sets the browser vendor, name and version shown in the linked
// devices list.
func SetBrowser(vendor string, platformType waproto.DevicePropsPlatformType, version string) {
	DeviceProps.Os = vendor
	DeviceProps.PlatformType = platformType
	if parsed, err := ParseVersion(version); err == nil {
		DeviceProps.Version = &waproto.AppVersion{Primary: parsed[0], Secondary: parsed[1], Tertiary: parsed[2]}
	}
}

func (device *Device) getRegistrationPayload() *waproto.ClientPayload {
	payload := *BaseClientPayload
	regID := make([]byte, 4)
	binary.BigEndian.PutUint32(regID, device.RegistrationID)
	preKeyID := make([]byte, 4)
	binary.BigEndian.PutUint32(preKeyID, device.SignedPreKey.KeyID)
	deviceProps, _ := DeviceProps.Marshal()
	payload.DevicePairingData = &waproto.DevicePairingRegistrationData{
		ERegID:      regID,
		EKeytype:    []byte{ecc.DjbType},
		EIdent:      device.IdentityKey.Pub[:],
		ESkeyID:     preKeyID[1:],
		ESkeyVal:    device.SignedPreKey.Pub[:],
		ESkeySig:    device.SignedPreKey.Signature[:],
		BuildHash:   waVersionHash[:],
		DeviceProps: deviceProps,
	}
	payload.Passive = false
	payload.Pull = false
	return &payload
}

func (device *Device) getLoginPayload() *waproto.ClientPayload {
	payload := *BaseClientPayload
	payload.Username = device.ID.UserInt()
	payload.Device = uint32(device.ID.Device)
	payload.Passive = true
	payload.Pull = true
	return &payload
}

// GetClientPayload returns the payload to send in the clientFinish handshake
// message: the login variant if the device is already paired, the
// registration variant otherwise.
func (device *Device) GetClientPayload() *waproto.ClientPayload {
	if device.ID != nil {
		if *device.ID == types.EmptyJID {
			panic(fmt.Errorf("GetClientPayload called with empty JID"))
		}
		return device.getLoginPayload()
	}
	return device.getRegistrationPayload()
}
