// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// XMLString converts the Node to its XML representation for debug logging.
func (n *Node) XMLString() string {
	content := n.contentString()
	if len(content) == 0 {
		return fmt.Sprintf("<%[1]s%[2]s/>", n.Tag, n.attributeString())
	}
	newline := "\n"
	if len(content) == 1 && !strings.ContainsRune(content[0], '\n') {
		newline = ""
	}
	return fmt.Sprintf("<%[1]s%[2]s>%[4]s%[3]s%[4]s</%[1]s>", n.Tag, n.attributeString(), strings.Join(content, "\n"), newline)
}

func (n *Node) attributeString() string {
	if len(n.Attrs) == 0 {
		return ""
	}
	stringAttrs := make([]string, len(n.Attrs)+1)
	i := 1
	for key, value := range n.Attrs {
		stringAttrs[i] = fmt.Sprintf(`%s="%v"`, key, value)
		i++
	}
	sort.Strings(stringAttrs)
	return strings.Join(stringAttrs, " ")
}

func printable(data []byte) string {
	str := string(data)
	for _, c := range str {
		if !unicode.IsPrint(c) {
			return ""
		}
	}
	return str
}

func (n *Node) contentString() []string {
	split := make([]string, 0)
	switch content := n.Content.(type) {
	case []Node:
		for _, item := range content {
			split = append(split, strings.Split(item.XMLString(), "\n")...)
		}
	case []byte:
		if strContent := printable(content); len(strContent) > 0 {
			split = append(split, strings.Split(strContent, "\n")...)
		} else {
			split = append(split, fmt.Sprintf("<!-- %d bytes: %s -->", len(content), base64.StdEncoding.EncodeToString(content)))
		}
	case nil:
		// No content
	default:
		strContent := fmt.Sprintf("%+v", content)
		split = append(split, strings.Split(strContent, "\n")...)
	}
	indent(split)
	return split
}

func indent(lines []string) {
	if len(lines) == 1 {
		return
	}
	for i, line := range lines {
		lines[i] = "  " + line
	}
}
