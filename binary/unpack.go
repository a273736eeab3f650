// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Unpack removes the flag byte of a frame payload and decompresses the
// remaining data if the flag says it's zlib-compressed.
func Unpack(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidNode)
	}
	dataType, data := data[0], data[1:]
	if 2&dataType > 0 {
		decompressor, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create zlib reader: %w", err)
		}
		data, err = io.ReadAll(decompressor)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress frame: %w", err)
		}
	}
	return data, nil
}
