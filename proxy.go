// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// SetProxyAddress is a helper method that parses a proxy URL and calls
// SetProxy or SetSOCKSProxy based on the URL scheme.
//
// Returns an error if parsing the URL fails or if the scheme isn't supported.
func (cli *Client) SetProxyAddress(addr string) error {
	if addr == "" {
		cli.SetProxy(nil)
		return nil
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https":
		cli.SetProxy(http.ProxyURL(parsed))
	case "socks5":
		px, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return err
		}
		cli.SetSOCKSProxy(px)
	default:
		return fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}
	return nil
}

// SetProxy sets the proxy to use for the websocket connection. Must be called
// before Connect.
func (cli *Client) SetProxy(proxyFunc func(*http.Request) (*url.URL, error)) {
	cli.http.Transport = &http.Transport{Proxy: proxyFunc}
}

// SetSOCKSProxy sets a SOCKS5 proxy to use for the websocket connection.
// Must be called before Connect.
func (cli *Client) SetSOCKSProxy(px proxy.Dialer) {
	transport := &http.Transport{}
	if contextDialer, ok := px.(proxy.ContextDialer); ok {
		transport.DialContext = contextDialer.DialContext
	} else {
		transport.Dial = px.Dial
	}
	cli.http.Transport = transport
}
