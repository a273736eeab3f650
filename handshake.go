// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"bytes"
	"context"
	"fmt"

	"github.com/profchaos/wawire/proto/waproto"
	"github.com/profchaos/wawire/socket"
	"github.com/profchaos/wawire/util/keys"
)

// doHandshake implements the Noise XX handshake with the WhatsApp servers:
// clientHello carries the fresh ephemeral key, the server hello is verified
// against the certificate inside it, and clientFinish carries the encrypted
// static key plus the client payload (login or registration).
func (cli *Client) doHandshake(ctx context.Context, fs *socket.FrameSocket, ephemeralKP keys.KeyPair) error {
	nh := socket.NewNoiseHandshake()
	nh.Start(socket.NoiseStartPattern, socket.WAConnHeader)
	nh.Authenticate(ephemeralKP.Pub[:])
	data, err := (&waproto.HandshakeMessage{
		ClientHello: &waproto.HandshakeClientHello{
			Ephemeral: ephemeralKP.Pub[:],
		},
	}).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal handshake message: %w", err)
	}
	nextFrame, cancelConsumer := socket.ConsumeNextFrame(fs)
	defer cancelConsumer()
	err = fs.SendFrame(data)
	if err != nil {
		return fmt.Errorf("failed to send handshake message: %w", err)
	}
	var resp []byte
	select {
	case resp = <-nextFrame:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for handshake response: %w", ctx.Err())
	}
	var handshakeResponse waproto.HandshakeMessage
	err = handshakeResponse.Unmarshal(resp)
	if err != nil {
		return fmt.Errorf("failed to unmarshal handshake response: %w", err)
	}
	if handshakeResponse.ServerHello == nil {
		return fmt.Errorf("missing server hello in handshake response")
	}
	serverEphemeral := handshakeResponse.ServerHello.Ephemeral
	serverStaticCiphertext := handshakeResponse.ServerHello.Static
	certificateCiphertext := handshakeResponse.ServerHello.Payload
	if serverEphemeral == nil || serverStaticCiphertext == nil || certificateCiphertext == nil {
		return fmt.Errorf("missing parts of handshake response")
	}
	if len(serverEphemeral) != 32 {
		return fmt.Errorf("unexpected server ephemeral length %d", len(serverEphemeral))
	}

	nh.Authenticate(serverEphemeral)
	err = nh.MixSharedSecretIntoKey(*ephemeralKP.Priv, *(*[32]byte)(serverEphemeral))
	if err != nil {
		return fmt.Errorf("failed to mix server ephemeral key in: %w", err)
	}

	staticDecrypted, err := nh.Decrypt(serverStaticCiphertext)
	if err != nil {
		return fmt.Errorf("failed to decrypt server static ciphertext: %w", err)
	} else if len(staticDecrypted) != 32 {
		return fmt.Errorf("unexpected server static length %d", len(staticDecrypted))
	}
	err = nh.MixSharedSecretIntoKey(*ephemeralKP.Priv, *(*[32]byte)(staticDecrypted))
	if err != nil {
		return fmt.Errorf("failed to mix server static key in: %w", err)
	}

	certDecrypted, err := nh.Decrypt(certificateCiphertext)
	if err != nil {
		return fmt.Errorf("failed to decrypt noise certificate ciphertext: %w", err)
	}
	var cert waproto.NoiseCertificate
	err = cert.Unmarshal(certDecrypted)
	if err != nil {
		return fmt.Errorf("failed to unmarshal noise certificate: %w", err)
	}
	if cert.Details == nil || cert.Signature == nil {
		return fmt.Errorf("missing parts of noise certificate")
	}
	var certDetails waproto.NoiseCertificateDetails
	err = certDetails.Unmarshal(cert.Details)
	if err != nil {
		return fmt.Errorf("failed to unmarshal noise certificate details: %w", err)
	} else if !bytes.Equal(certDetails.Key, staticDecrypted) {
		return fmt.Errorf("cert key doesn't match decrypted static")
	}

	encryptedPubkey := nh.Encrypt(cli.Store.NoiseKey.Pub[:])
	err = nh.MixSharedSecretIntoKey(*cli.Store.NoiseKey.Priv, *(*[32]byte)(serverEphemeral))
	if err != nil {
		return fmt.Errorf("failed to mix noise private key in: %w", err)
	}

	clientFinishPayloadBytes, err := cli.Store.GetClientPayload().Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal client finish payload: %w", err)
	}
	encryptedClientFinishPayload := nh.Encrypt(clientFinishPayloadBytes)
	data, err = (&waproto.HandshakeMessage{
		ClientFinish: &waproto.HandshakeClientFinish{
			Static:  encryptedPubkey,
			Payload: encryptedClientFinishPayload,
		},
	}).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal handshake finish message: %w", err)
	}
	err = fs.SendFrame(data)
	if err != nil {
		return fmt.Errorf("failed to send handshake finish message: %w", err)
	}

	ns, err := nh.Finish(fs, cli.handleFrameWrapper, cli.onDisconnect)
	if err != nil {
		return fmt.Errorf("failed to create noise socket: %w", err)
	}

	cli.socket = ns

	return nil
}

func (cli *Client) handleFrameWrapper(_ *socket.NoiseSocket, frame []byte) {
	cli.handleFrame(frame)
}
